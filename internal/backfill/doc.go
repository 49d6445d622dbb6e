// Package backfill implements the historical bar backfill engine.
//
// The engine pages backward from "now" through a bounded trailing window
// of minute bars, one symbol at a time, sharing the process-wide request
// budget with live contract lookups. Re-running is safe: bar inserts are
// idempotent on (symbol, timestamp).
package backfill
