package models

import (
	"time"
)

// Direction marks which way a bridged message traveled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"  // carrier -> mesh
	DirectionOutbound Direction = "outbound" // mesh -> carrier
)

// HistoryEntry is one record in the bounded message log.
type HistoryEntry struct {
	ID            int64     `db:"id"`
	Timestamp     time.Time `db:"timestamp"`
	Direction     Direction `db:"direction"`
	Counterpart   string    `db:"counterpart"`
	Body          string    `db:"body"`
	CorrelationID string    `db:"correlation_id"`
}

// GatewayState is the full persisted snapshot of the usage tracker:
// per-sender daily counts, the bounded history buffer, and the date the
// counters were last reset.
type GatewayState struct {
	DailyCounts map[string]int
	History     []HistoryEntry
	LastReset   time.Time
}
