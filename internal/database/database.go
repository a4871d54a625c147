package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"meshgate/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_counts (
	sender_id TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS message_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	direction TEXT NOT NULL,
	counterpart TEXT NOT NULL,
	body TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_message_history_timestamp ON message_history(timestamp);

CREATE TABLE IF NOT EXISTS gateway_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const metaKeyLastReset = "last_reset"

// Database persists the gateway state snapshot: per-sender daily counts,
// the bounded message history, and the last counter-reset date.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveState replaces the stored snapshot with the given state inside a
// single transaction. The caller owns trimming the history buffer.
func (d *Database) SaveState(ctx context.Context, state *models.GatewayState) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_counts"); err != nil {
		return fmt.Errorf("failed to clear daily counts: %w", err)
	}
	for senderID, count := range state.DailyCounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO daily_counts (sender_id, count, updated_at) VALUES (?, ?, ?)",
			senderID, count, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("failed to save daily count: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM message_history"); err != nil {
		return fmt.Errorf("failed to clear message history: %w", err)
	}
	for _, entry := range state.History {
		encryptedCounterpart, err := d.encryptor.EncryptIfEnabled(entry.Counterpart)
		if err != nil {
			return fmt.Errorf("failed to encrypt counterpart: %w", err)
		}
		encryptedBody, err := d.encryptor.EncryptIfEnabled(entry.Body)
		if err != nil {
			return fmt.Errorf("failed to encrypt body: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_history (timestamp, direction, counterpart, body, correlation_id)
			 VALUES (?, ?, ?, ?, ?)`,
			entry.Timestamp.UTC(), entry.Direction, encryptedCounterpart, encryptedBody, entry.CorrelationID,
		); err != nil {
			return fmt.Errorf("failed to save history entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO gateway_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaKeyLastReset, state.LastReset.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save last reset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}

	return nil
}

// LoadState restores the persisted snapshot. A fresh database yields an
// empty state with a zero LastReset.
func (d *Database) LoadState(ctx context.Context) (*models.GatewayState, error) {
	state := &models.GatewayState{
		DailyCounts: make(map[string]int),
	}

	rows, err := d.db.QueryContext(ctx, "SELECT sender_id, count FROM daily_counts")
	if err != nil {
		return nil, fmt.Errorf("failed to load daily counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var senderID string
		var count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		state.DailyCounts[senderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily counts: %w", err)
	}

	historyRows, err := d.db.QueryContext(ctx,
		"SELECT id, timestamp, direction, counterpart, body, correlation_id FROM message_history ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load message history: %w", err)
	}
	defer historyRows.Close()

	for historyRows.Next() {
		var entry models.HistoryEntry
		var encryptedCounterpart, encryptedBody string
		if err := historyRows.Scan(
			&entry.ID, &entry.Timestamp, &entry.Direction,
			&encryptedCounterpart, &encryptedBody, &entry.CorrelationID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.Counterpart, err = d.encryptor.DecryptIfEnabled(encryptedCounterpart)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt counterpart: %w", err)
		}
		entry.Body, err = d.encryptor.DecryptIfEnabled(encryptedBody)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt body: %w", err)
		}

		state.History = append(state.History, entry)
	}
	if err := historyRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message history: %w", err)
	}

	var lastReset string
	err = d.db.QueryRowContext(ctx,
		"SELECT value FROM gateway_meta WHERE key = ?", metaKeyLastReset).Scan(&lastReset)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load last reset: %w", err)
	}
	if err == nil {
		ts, parseErr := time.Parse(time.RFC3339, lastReset)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse last reset %q: %w", lastReset, parseErr)
		}
		state.LastReset = ts
	}

	return state, nil
}
