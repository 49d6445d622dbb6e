package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	API         APIConfig        `yaml:"api"`
	Database    DBConfig         `yaml:"database"`
	Backfill    BackfillConfig   `yaml:"backfill"`
	Live        LiveConfig       `yaml:"live"`
	Connection  ConnectionConfig `yaml:"connection"`
	Instruments []Instrument     `yaml:"instruments"`
	Health      HealthConfig     `yaml:"health"`
}

// APIConfig holds platform REST API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	SearchTimeout  time.Duration `yaml:"search_timeout"`  // Contract lookups
	HistoryTimeout time.Duration `yaml:"history_timeout"` // Bar history pages
	RateLimit      int           `yaml:"rate_limit"`      // Requests per window
	RateWindow     time.Duration `yaml:"rate_window"`     // Fixed window length
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// BackfillConfig holds historical backfill settings.
type BackfillConfig struct {
	Days           int `yaml:"days"`             // Trailing window in days
	BarsPerRequest int `yaml:"bars_per_request"` // Max bars per history page
}

// LiveConfig holds live bar aggregation settings.
type LiveConfig struct {
	// VolumeResetPolicy controls how a decreasing cumulative volume
	// counter is handled: "ignore" drops the delta, "rebase" adopts the
	// new reading as the baseline.
	VolumeResetPolicy string `yaml:"volume_reset_policy"`
}

// ConnectionConfig holds push-channel settings.
type ConnectionConfig struct {
	HubURL           string          `yaml:"hub_url"`
	ReconnectDelays  []time.Duration `yaml:"reconnect_delays"` // Backoff schedule; last entry repeats
	SubscribeDelay   time.Duration   `yaml:"subscribe_delay"`  // Pacing between subscribe sends
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	PingInterval     time.Duration   `yaml:"ping_interval"`
	StaleTimeout     time.Duration   `yaml:"stale_timeout"` // Max silence before forcing reconnect
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
}

// Instrument describes one tradable symbol and its rollover calendar.
type Instrument struct {
	Symbol       string `yaml:"symbol"`
	Exchange     string `yaml:"exchange"`
	Months       []int  `yaml:"months"`         // Valid expiry months (1-12)
	EarlyRollDay int    `yaml:"early_roll_day"` // Day of expiry month before which it is still active
}

// HealthConfig holds the status HTTP endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Symbols returns the configured instrument symbols in order.
func (c *CollectorConfig) Symbols() []string {
	out := make([]string, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		out = append(out, inst.Symbol)
	}
	return out
}

// Instrument returns the instrument config for a symbol, if present.
func (c *CollectorConfig) Instrument(symbol string) (Instrument, bool) {
	for _, inst := range c.Instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return Instrument{}, false
}
