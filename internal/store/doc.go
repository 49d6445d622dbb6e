// Package store provides PostgreSQL persistence for bars, quotes,
// contract mappings, and backfill progress.
//
// Bar inserts use ON CONFLICT DO NOTHING on (symbol, timestamp): both
// the live and backfill paths are idempotent and may overlap safely.
package store
