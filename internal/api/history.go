package api

import (
	"context"
	"fmt"
	"time"
)

// Bar history request units.
const (
	UnitMinute = 2
)

// RetrieveBars fetches up to limit 1-minute bars for a contract within
// [start, end]. Partial (still-open) bars are excluded. An unsuccessful
// API status returns an empty slice, not an error: the platform reports
// exhausted ranges this way and the caller treats it as "no data".
func (c *Client) RetrieveBars(ctx context.Context, contractID string, start, end time.Time, limit int) ([]BarRecord, error) {
	var resp RetrieveBarsResponse
	err := c.post(ctx, "/History/retrieveBars", RetrieveBarsRequest{
		ContractID:        contractID,
		Live:              false,
		StartTime:         start.UTC().Format(time.RFC3339),
		EndTime:           end.UTC().Format(time.RFC3339),
		Unit:              UnitMinute,
		UnitNumber:        1,
		Limit:             limit,
		IncludePartialBar: false,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("retrieve bars %s: %w", contractID, err)
	}

	if !resp.Success {
		c.logger.Warn("retrieve bars rejected",
			"contract_id", contractID,
			"error", resp.ErrorMessage,
		)
		return nil, nil
	}

	return resp.Bars, nil
}
