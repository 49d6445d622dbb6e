package api

import (
	"context"
	"fmt"
)

// SearchContracts searches the platform for contracts matching a symbol.
// An unsuccessful API status is returned as an error; an empty candidate
// list with success is a valid (empty) result.
func (c *Client) SearchContracts(ctx context.Context, symbol string) ([]Contract, error) {
	var resp ContractSearchResponse
	err := c.post(ctx, "/Contract/search", ContractSearchRequest{
		SearchText: symbol,
		Live:       false,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search contracts %s: %w", symbol, err)
	}

	if !resp.Success {
		return nil, fmt.Errorf("search contracts %s: %s", symbol, resp.ErrorMessage)
	}

	return resp.Contracts, nil
}
