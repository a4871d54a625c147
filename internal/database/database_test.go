package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meshgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "meshgate.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestLoadState_FreshDatabase(t *testing.T) {
	db := setupTestDatabase(t)

	state, err := db.LoadState(context.Background())
	require.NoError(t, err)

	assert.Empty(t, state.DailyCounts)
	assert.Empty(t, state.History)
	assert.True(t, state.LastReset.IsZero())
}

func TestSaveAndLoadState(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	lastReset := time.Date(2026, 3, 14, 0, 5, 0, 0, time.UTC)
	saved := &models.GatewayState{
		DailyCounts: map[string]int{"alice": 3, "bob": 1},
		History: []models.HistoryEntry{
			{
				Timestamp:     time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
				Direction:     models.DirectionOutbound,
				Counterpart:   "+15559876543",
				Body:          "hello from the mesh",
				CorrelationID: "SM123",
			},
			{
				Timestamp:   time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC),
				Direction:   models.DirectionInbound,
				Counterpart: "+15551112222",
				Body:        "@alice hi",
			},
		},
		LastReset: lastReset,
	}

	require.NoError(t, db.SaveState(ctx, saved))

	loaded, err := db.LoadState(ctx)
	require.NoError(t, err)

	assert.Equal(t, saved.DailyCounts, loaded.DailyCounts)
	assert.True(t, loaded.LastReset.Equal(lastReset))

	require.Len(t, loaded.History, 2)
	assert.Equal(t, models.DirectionOutbound, loaded.History[0].Direction)
	assert.Equal(t, "+15559876543", loaded.History[0].Counterpart)
	assert.Equal(t, "hello from the mesh", loaded.History[0].Body)
	assert.Equal(t, "SM123", loaded.History[0].CorrelationID)
	assert.Equal(t, models.DirectionInbound, loaded.History[1].Direction)
}

func TestSaveState_ReplacesSnapshot(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	first := &models.GatewayState{
		DailyCounts: map[string]int{"alice": 5},
		History: []models.HistoryEntry{
			{Timestamp: time.Now().UTC(), Direction: models.DirectionOutbound, Counterpart: "+15551111111", Body: "one"},
		},
		LastReset: time.Now().UTC(),
	}
	require.NoError(t, db.SaveState(ctx, first))

	second := &models.GatewayState{
		DailyCounts: map[string]int{"bob": 2},
		History: []models.HistoryEntry{
			{Timestamp: time.Now().UTC(), Direction: models.DirectionInbound, Counterpart: "+15552222222", Body: "two"},
		},
		LastReset: time.Now().UTC(),
	}
	require.NoError(t, db.SaveState(ctx, second))

	loaded, err := db.LoadState(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"bob": 2}, loaded.DailyCounts)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "two", loaded.History[0].Body)
}

func TestSaveState_EmptyState(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveState(ctx, &models.GatewayState{
		DailyCounts: map[string]int{},
		LastReset:   time.Now().UTC(),
	}))

	loaded, err := db.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.DailyCounts)
	assert.Empty(t, loaded.History)
}

func TestSaveAndLoadState_WithEncryption(t *testing.T) {
	t.Setenv("MESHGATE_ENABLE_ENCRYPTION", "true")
	t.Setenv("MESHGATE_ENCRYPTION_SECRET", "test-encryption-secret-at-least-32-chars")

	db := setupTestDatabase(t)
	ctx := context.Background()

	saved := &models.GatewayState{
		DailyCounts: map[string]int{"alice": 1},
		History: []models.HistoryEntry{
			{
				Timestamp:   time.Now().UTC(),
				Direction:   models.DirectionOutbound,
				Counterpart: "+15559876543",
				Body:        "sensitive content",
			},
		},
		LastReset: time.Now().UTC(),
	}
	require.NoError(t, db.SaveState(ctx, saved))

	// Stored columns must not contain the plaintext.
	var storedBody string
	err := db.db.QueryRow("SELECT body FROM message_history LIMIT 1").Scan(&storedBody)
	require.NoError(t, err)
	assert.NotEqual(t, "sensitive content", storedBody)

	loaded, err := db.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "sensitive content", loaded.History[0].Body)
	assert.Equal(t, "+15559876543", loaded.History[0].Counterpart)
}
