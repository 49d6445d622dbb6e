package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrHandshake       = errors.New("hub handshake rejected")
)

// State is the manager's lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

// Hub message types (SignalR JSON protocol).
const (
	msgTypeInvocation = 1
	msgTypePing       = 6
	msgTypeClose      = 7
)

// recordSeparator terminates every hub protocol record.
const recordSeparator = 0x1e

// Hub invocation targets.
const (
	TargetQuote     = "GatewayQuote"
	TargetTrade     = "GatewayTrade"
	TargetSubscribe = "SubscribeContractQuotes"
)

// hubMessage is one SignalR JSON record.
type hubMessage struct {
	Type      int               `json:"type"`
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// handshakeRequest opens the hub protocol negotiation.
type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// handshakeResponse is the server's reply; empty on success.
type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// TimestampedRecord wraps one raw hub record with its receive time.
type TimestampedRecord struct {
	Data       []byte    // One 0x1e-delimited JSON record, separator stripped
	ReceivedAt time.Time // Local timestamp when the record was read
}

// ClientConfig configures a hub client.
type ClientConfig struct {
	URL              string        // Hub URL (wss://...), token appended as access_token
	Token            string        // Bearer token from login
	HandshakeTimeout time.Duration // Dial + protocol handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Interval between type-6 pings
	StaleTimeout     time.Duration // Max silence before the connection is considered dead
	BufferSize       int           // Record channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		StaleTimeout:     60 * time.Second,
		BufferSize:       10000,
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	HubURL          string          // Hub URL
	Token           string          // Bearer token from login
	ReconnectDelays []time.Duration // Backoff schedule; last entry repeats
	SubscribeDelay  time.Duration   // Pacing between subscribe sends
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	StaleTimeout    time.Duration
	HandshakeWait   time.Duration
}

// ManagerStats is a snapshot of manager bookkeeping.
type ManagerStats struct {
	State         State
	Subscriptions int   // Contracts subscribed on the current connection
	Reconnects    int64 // Completed reconnect cycles
	QuotesRouted  int64 // GatewayQuote invocations delivered to the sink
	TradesSeen    int64 // GatewayTrade invocations received (not processed)
}
