// Package model defines shared data types for the futures data collector.
//
// Conventions:
//   - Prices: float64 in instrument points
//   - Timestamps: int64 seconds since Unix epoch; bar timestamps are minute-aligned
//   - IDs: string for platform contract IDs, uuid.UUID for trade IDs
package model
