package service

import (
	"context"
	"sync"
	"time"

	"meshgate/internal/constants"
	"meshgate/internal/models"

	"github.com/sirupsen/logrus"
)

// StateStore persists and restores the gateway state snapshot.
type StateStore interface {
	SaveState(ctx context.Context, state *models.GatewayState) error
	LoadState(ctx context.Context) (*models.GatewayState, error)
}

// UsageTracker tracks per-sender daily SMS counts and keeps the bounded
// message history. Counters reset lazily on the first operation of a new
// UTC day, and eagerly when the scheduler drives ResetIfNewDay.
type UsageTracker struct {
	store       StateStore
	logger      *logrus.Logger
	dailyLimit  int
	historySize int

	mu        sync.Mutex
	counts    map[string]int
	history   []models.HistoryEntry
	lastReset time.Time

	now func() time.Time
}

func NewUsageTracker(store StateStore, dailyLimit, historySize int, logger *logrus.Logger) *UsageTracker {
	if dailyLimit <= 0 {
		dailyLimit = constants.DefaultDailyLimit
	}
	if historySize <= 0 {
		historySize = constants.DefaultHistorySize
	}
	return &UsageTracker{
		store:       store,
		logger:      logger,
		dailyLimit:  dailyLimit,
		historySize: historySize,
		counts:      make(map[string]int),
		now:         time.Now,
	}
}

// CheckAndReserve reserves one message slot for senderID: it increments
// the sender's count and returns true iff the count is still under the
// daily limit. A false return leaves the count untouched.
func (t *UsageTracker) CheckAndReserve(senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked()

	if t.counts[senderID] >= t.dailyLimit {
		return false
	}
	t.counts[senderID]++
	return true
}

// Usage returns senderID's count for today and the daily limit.
func (t *UsageTracker) Usage(senderID string) (used, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked()
	return t.counts[senderID], t.dailyLimit
}

// TotalToday returns the aggregate count across all senders.
func (t *UsageTracker) TotalToday() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked()
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// RecordHistory appends an entry, evicting the oldest entries beyond the
// configured buffer size.
func (t *UsageTracker) RecordHistory(entry models.HistoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, entry)
	if len(t.history) > t.historySize {
		t.history = t.history[len(t.history)-t.historySize:]
	}
}

// RecentHistory returns up to n most-recent entries, oldest first.
func (t *UsageTracker) RecentHistory(n int) []models.HistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n > len(t.history) {
		n = len(t.history)
	}
	out := make([]models.HistoryEntry, n)
	copy(out, t.history[len(t.history)-n:])
	return out
}

// ResetDaily clears all daily counters. Idempotent: repeated calls on
// the same day have no observable effect beyond the first.
func (t *UsageTracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// ResetIfNewDay applies the daily reset iff the UTC date has advanced
// past the last reset, then persists the state. Returns whether a reset
// happened. Driven by the scheduler.
func (t *UsageTracker) ResetIfNewDay(ctx context.Context) bool {
	t.mu.Lock()
	reset := t.rolloverLocked()
	t.mu.Unlock()

	if reset {
		if err := t.Save(ctx); err != nil {
			t.logger.WithError(err).Warn("Failed to persist state after daily reset")
		}
		t.logger.Info("Daily SMS counters reset")
	}
	return reset
}

// Load restores the persisted snapshot. If the stored last-reset date is
// before today (UTC), the counters are cleared before use.
func (t *UsageTracker) Load(ctx context.Context) error {
	state, err := t.store.LoadState(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts = state.DailyCounts
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.history = state.History
	if len(t.history) > t.historySize {
		t.history = t.history[len(t.history)-t.historySize:]
	}
	t.lastReset = state.LastReset
	if t.lastReset.IsZero() {
		t.lastReset = t.now().UTC()
	}
	t.rolloverLocked()

	return nil
}

// Save persists the current snapshot. A failed save leaves the in-memory
// state authoritative; callers log and continue.
func (t *UsageTracker) Save(ctx context.Context) error {
	t.mu.Lock()
	state := &models.GatewayState{
		DailyCounts: make(map[string]int, len(t.counts)),
		History:     make([]models.HistoryEntry, len(t.history)),
		LastReset:   t.lastReset,
	}
	for k, v := range t.counts {
		state.DailyCounts[k] = v
	}
	copy(state.History, t.history)
	t.mu.Unlock()

	return t.store.SaveState(ctx, state)
}

// rolloverLocked clears the counters when the UTC calendar day has
// advanced. Caller must hold t.mu.
func (t *UsageTracker) rolloverLocked() bool {
	now := t.now().UTC()
	last := t.lastReset.UTC()
	if now.Year() == last.Year() && now.YearDay() == last.YearDay() {
		return false
	}
	t.resetLocked()
	return true
}

func (t *UsageTracker) resetLocked() {
	t.counts = make(map[string]int)
	t.lastReset = t.now().UTC()
}
