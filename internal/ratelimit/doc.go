// Package ratelimit enforces the platform's fixed-window request budget.
//
// The REST API allows a fixed number of requests per window (50 per 30s).
// The limiter is shared by every outbound call site: backfill pages and
// contract lookups draw from the same budget.
package ratelimit
