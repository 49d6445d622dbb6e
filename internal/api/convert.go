package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuldar/futures-data/internal/model"
)

// ToBar converts an API bar record into a model.Bar for the given symbol.
// The record timestamp is truncated to its minute boundary.
func (r BarRecord) ToBar(symbol string) (model.Bar, error) {
	if r.T == "" {
		return model.Bar{}, fmt.Errorf("bar record missing timestamp")
	}

	ts, err := parseBarTime(r.T)
	if err != nil {
		return model.Bar{}, fmt.Errorf("parse bar timestamp %q: %w", r.T, err)
	}

	return model.Bar{
		Symbol:    symbol,
		Timestamp: model.MinuteStart(ts),
		Open:      r.O,
		High:      r.H,
		Low:       r.L,
		Close:     r.C,
		Volume:    r.V,
		Source:    model.SourceBackfill,
	}, nil
}

// parseBarTime handles the timestamp formats the history endpoint emits:
// RFC 3339 with offset, "Z" suffix, or no zone at all (implied UTC).
func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}
