package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kuldar/futures-data/internal/api"
)

// QuoteSink receives routed quote events and owns in-progress bar state.
type QuoteSink interface {
	OnQuote(contractID string, q api.GatewayQuote)
	FlushAll()
}

// Manager owns the push-channel lifecycle: connect, subscribe,
// reconnect on the configured delay schedule, and flush-on-stop.
type Manager struct {
	cfg    ManagerConfig
	sink   QuoteSink
	logger *slog.Logger

	contractIDs []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	state         State
	client        *Client
	subscriptions int
	reconnects    int64
	quotesRouted  int64
	tradesSeen    int64
}

// NewManager creates a connection manager. contractIDs are subscribed
// on every (re)connect.
func NewManager(cfg ManagerConfig, contractIDs []string, sink QuoteSink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		sink:        sink,
		logger:      logger,
		contractIDs: contractIDs,
		state:       StateDisconnected,
	}
}

// Start launches the connection loop. It returns immediately; the first
// connect happens on the loop goroutine so a slow hub cannot stall
// startup.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started",
		"hub_url", m.cfg.HubURL,
		"contracts", len(m.contractIDs),
	)
	return nil
}

// Stop flushes all in-progress bars, then tears down the channel.
// Flush happens before teardown so the open minute is not lost.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	// Stop routing first so no tick lands after the flush, then flush
	// every open bar, then tear the socket down.
	if m.cancel != nil {
		m.cancel()
	}

	m.sink.FlushAll()

	m.mu.Lock()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.state = StateStopped
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns a bookkeeping snapshot.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ManagerStats{
		State:         m.state,
		Subscriptions: m.subscriptions,
		Reconnects:    m.reconnects,
		QuotesRouted:  m.quotesRouted,
		TradesSeen:    m.tradesSeen,
	}
}

// run is the connection loop: connect, consume until failure, then walk
// the reconnect schedule. The schedule restarts from its first entry
// after every successful connection.
func (m *Manager) run() {
	defer m.wg.Done()

	attempt := 0
	everConnected := false
	for {
		delay := m.reconnectDelay(attempt)
		if delay > 0 {
			m.logger.Info("waiting before reconnect", "attempt", attempt, "delay", delay)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if m.ctx.Err() != nil {
			return
		}

		m.setState(StateConnecting)

		client := NewClient(m.clientConfig(), m.logger)
		if err := client.Connect(m.ctx); err != nil {
			m.logger.Warn("hub connect failed", "attempt", attempt, "error", err)
			m.setState(StateReconnecting)
			attempt++
			continue
		}

		m.mu.Lock()
		m.client = client
		if everConnected {
			m.reconnects++
		}
		m.state = StateConnected
		m.mu.Unlock()
		everConnected = true
		m.logger.Info("connected to market hub")

		m.subscribeAll(client)

		// Blocks until the connection dies or the manager stops.
		m.consume(client)

		client.Close()
		m.mu.Lock()
		m.client = nil
		m.mu.Unlock()

		if m.ctx.Err() != nil {
			return
		}

		m.setState(StateReconnecting)
		attempt = 0
	}
}

// subscribeAll subscribes every configured contract, pacing sends so the
// hub is not overwhelmed.
func (m *Manager) subscribeAll(client *Client) {
	subscribed := 0
	for _, contractID := range m.contractIDs {
		if m.ctx.Err() != nil {
			break
		}

		if err := client.Invoke(TargetSubscribe, contractID); err != nil {
			m.logger.Warn("subscribe failed", "contract_id", contractID, "error", err)
			continue
		}
		subscribed++
		m.logger.Info("subscribed", "contract_id", contractID)

		if m.cfg.SubscribeDelay > 0 {
			select {
			case <-m.ctx.Done():
			case <-time.After(m.cfg.SubscribeDelay):
			}
		}
	}

	m.mu.Lock()
	m.subscriptions = subscribed
	m.mu.Unlock()
}

// consume routes inbound records until the connection errors or the
// manager stops. All sink calls happen on this goroutine, so per-symbol
// bar state is never mutated concurrently.
func (m *Manager) consume(client *Client) {
	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("hub connection error", "error", err)
			return

		case record, ok := <-client.Records():
			if !ok {
				return
			}
			m.handleRecord(record.Data)
		}
	}
}

// handleRecord parses and dispatches one hub record. Malformed records
// are skipped, never fatal.
func (m *Manager) handleRecord(data []byte) {
	var msg hubMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn("skipping malformed hub record", "error", err)
		return
	}

	switch msg.Type {
	case msgTypeInvocation:
		m.handleInvocation(msg)
	case msgTypePing:
		// Liveness only; the client tracks activity.
	case msgTypeClose:
		m.logger.Warn("hub sent close", "error", msg.Error)
	}
}

// handleInvocation dispatches a hub event. Arguments are
// [contractID, payload].
func (m *Manager) handleInvocation(msg hubMessage) {
	switch msg.Target {
	case TargetQuote:
		if len(msg.Arguments) < 2 {
			return
		}

		var contractID string
		if err := json.Unmarshal(msg.Arguments[0], &contractID); err != nil {
			m.logger.Warn("skipping quote with bad contract id", "error", err)
			return
		}

		var quote api.GatewayQuote
		if err := json.Unmarshal(msg.Arguments[1], &quote); err != nil {
			m.logger.Warn("skipping malformed quote", "contract_id", contractID, "error", err)
			return
		}

		m.sink.OnQuote(contractID, quote)

		m.mu.Lock()
		m.quotesRouted++
		m.mu.Unlock()

	case TargetTrade:
		// Accepted but not acted upon.
		m.mu.Lock()
		m.tradesSeen++
		m.mu.Unlock()
	}
}

// reconnectDelay returns the schedule entry for an attempt; the last
// entry repeats for all later attempts.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	delays := m.cfg.ReconnectDelays
	if len(delays) == 0 {
		return 0
	}
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) clientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = m.cfg.HubURL
	cfg.Token = m.cfg.Token
	if m.cfg.WriteTimeout > 0 {
		cfg.WriteTimeout = m.cfg.WriteTimeout
	}
	if m.cfg.PingInterval > 0 {
		cfg.PingInterval = m.cfg.PingInterval
	}
	if m.cfg.StaleTimeout > 0 {
		cfg.StaleTimeout = m.cfg.StaleTimeout
	}
	if m.cfg.HandshakeWait > 0 {
		cfg.HandshakeTimeout = m.cfg.HandshakeWait
	}
	return cfg
}
