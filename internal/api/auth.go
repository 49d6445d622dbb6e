package api

import (
	"context"
	"fmt"
)

// Login exchanges credentials for a bearer token and stores it on the
// client for subsequent requests.
func (c *Client) Login(ctx context.Context, userName, apiKey string) (string, error) {
	var resp LoginResponse
	err := c.post(ctx, "/Auth/loginKey", LoginRequest{
		UserName: userName,
		APIKey:   apiKey,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if (!resp.Success && resp.ErrorCode != 0) || resp.Token == "" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("login rejected: %s", msg)
	}

	c.setToken(resp.Token)
	return resp.Token, nil
}
