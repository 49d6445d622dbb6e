package model

import (
	"time"

	"github.com/google/uuid"
)

// Bar sources.
const (
	SourceWebsocket = "websocket"
	SourceBackfill  = "rest_backfill"
)

// -----------------------------------------------------------------------------
// Persisted Types
// -----------------------------------------------------------------------------

// Bar is a 1-minute OHLCV bar. Unique per (Symbol, Timestamp).
type Bar struct {
	Symbol    string  // Instrument symbol (e.g., "MNQ")
	Timestamp int64   // Minute-aligned bar open time (s since epoch)
	Open      float64 // First price in the minute
	High      float64 // Highest price in the minute
	Low       float64 // Lowest price in the minute
	Close     float64 // Last price in the minute
	Volume    int64   // Contracts traded during the minute
	Source    string  // "websocket" or "rest_backfill"
}

// Quote is the current market state for a symbol, overwritten on every tick.
type Quote struct {
	Symbol     string  // Instrument symbol
	ContractID string  // Platform contract ID (e.g., "CON.F.US.MNQ.H5")
	Bid        float64 // Best bid
	Ask        float64 // Best ask
	Last       float64 // Last traded price
	High       float64 // Session high
	Low        float64 // Session low
	Open       float64 // Session open
	Volume     int64   // Cumulative session volume
	UpdatedAt  int64   // Last update time (s since epoch)
}

// ContractMapping is a cached symbol → contract ID resolution.
type ContractMapping struct {
	Symbol     string  // Instrument symbol (primary key)
	ContractID string  // Platform contract ID
	Name       string  // Descriptive contract name
	TickSize   float64 // Minimum price increment
	UpdatedAt  int64   // Last refresh time (s since epoch)
}

// BackfillProgress tracks historical backfill state per symbol.
type BackfillProgress struct {
	Symbol      string // Instrument symbol (primary key)
	OldestBar   int64  // Oldest bar timestamp seen (s since epoch), 0 if none
	NewestBar   int64  // Newest bar timestamp seen (s since epoch), 0 if none
	TotalBars   int64  // Total bar count for the symbol
	Done        bool   // Backfill completed for this source
	LastUpdated int64  // Last progress update (s since epoch)
}

// SymbolStatus is the operational status read path for one symbol.
// Served as JSON by the status endpoint.
type SymbolStatus struct {
	Symbol    string `json:"symbol"`     // Instrument symbol
	BarCount  int64  `json:"bar_count"`  // Total bars stored
	OldestBar int64  `json:"oldest_bar"` // Oldest bar timestamp (s since epoch), 0 if none
	NewestBar int64  `json:"newest_bar"` // Newest bar timestamp (s since epoch), 0 if none
}

// -----------------------------------------------------------------------------
// Ephemeral Types
// -----------------------------------------------------------------------------

// Trade is an executed trade delivered over the push channel.
// Received and decoded, but not persisted by the collector.
type Trade struct {
	ID         uuid.UUID // Platform trade ID
	ContractID string    // Platform contract ID
	Price      float64   // Trade price
	Volume     int64     // Trade size
	Timestamp  int64     // Execution time (s since epoch)
}

// MinuteStart truncates t to its minute boundary and returns unix seconds.
func MinuteStart(t time.Time) int64 {
	return t.UTC().Truncate(time.Minute).Unix()
}
