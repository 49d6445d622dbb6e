package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a single hub connection. It handles the WebSocket dial, the
// protocol handshake, record framing, and keepalive; the Manager layers
// subscriptions and reconnection on top.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	records chan TimestampedRecord
	errors  chan error
	done    chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu           sync.RWMutex
	connected    bool
	closed       bool
	lastActivity time.Time
}

// NewClient creates a hub client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		records: make(chan TimestampedRecord, cfg.BufferSize),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect dials the hub and completes the protocol handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	hubURL, err := buildHubURL(c.cfg.URL, c.cfg.Token)
	if err != nil {
		return fmt.Errorf("build hub url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, hubURL, nil)
	if err != nil {
		return fmt.Errorf("dial hub: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastActivity = time.Now()
	c.mu.Unlock()

	go c.readLoop()
	go c.keepaliveLoop()

	c.logger.Debug("hub connected", "url", c.cfg.URL)
	return nil
}

// handshake negotiates the JSON hub protocol on a fresh connection.
func (c *Client) handshake(conn *websocket.Conn) error {
	req, _ := json.Marshal(handshakeRequest{Protocol: "json", Version: 1})

	conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, append(req, recordSeparator)); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var resp handshakeResponse
	segment := bytes.TrimSuffix(bytes.SplitN(data, []byte{recordSeparator}, 2)[0], []byte{recordSeparator})
	if err := json.Unmarshal(segment, &resp); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrHandshake, resp.Error)
	}

	return nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}

	return nil
}

// Invoke sends a non-blocking hub invocation.
func (c *Client) Invoke(target string, args ...any) error {
	rawArgs := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal argument: %w", err)
		}
		rawArgs = append(rawArgs, data)
	}

	data, err := json.Marshal(hubMessage{
		Type:      msgTypeInvocation,
		Target:    target,
		Arguments: rawArgs,
	})
	if err != nil {
		return fmt.Errorf("marshal invocation: %w", err)
	}

	return c.send(data)
}

// send writes one framed record to the connection.
func (c *Client) send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, append(data, recordSeparator))
}

// Records returns the channel of inbound hub records.
func (c *Client) Records() <-chan TimestampedRecord {
	return c.records
}

// Errors returns the channel of connection errors.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads WebSocket frames, splits them into hub records, and
// delivers them on the records channel.
func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errors <- err:
				default:
				}
				return
			}
		}

		c.mu.Lock()
		c.lastActivity = receivedAt
		c.mu.Unlock()

		for _, segment := range bytes.Split(data, []byte{recordSeparator}) {
			if len(segment) == 0 {
				continue
			}

			record := TimestampedRecord{Data: segment, ReceivedAt: receivedAt}
			select {
			case c.records <- record:
			case <-c.done:
				return
			default:
				c.logger.Warn("record buffer full, dropping record")
			}
		}
	}
}

// keepaliveLoop sends periodic pings and detects dead connections.
func (c *Client) keepaliveLoop() {
	ping, _ := json.Marshal(hubMessage{Type: msgTypePing})

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(ping); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			last := c.lastActivity
			c.mu.RUnlock()

			if time.Since(last) > c.cfg.StaleTimeout {
				c.logger.Warn("no hub traffic, connection stale",
					"last_activity", last,
					"timeout", c.cfg.StaleTimeout,
				)
				select {
				case c.errors <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}

// buildHubURL appends the access token to the hub URL.
func buildHubURL(hubURL, token string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", err
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
