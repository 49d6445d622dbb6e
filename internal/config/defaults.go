package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL        = "https://api.topstepx.com/api"
	DefaultHubURL         = "wss://rtc.topstepx.com/hubs/market"
	DefaultSearchTimeout  = 10 * time.Second
	DefaultHistoryTimeout = 30 * time.Second
	DefaultRateLimit      = 50
	DefaultRateWindow     = 30 * time.Second
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultBackfillDays   = 44
	DefaultBarsPerRequest = 20000
	DefaultVolumePolicy   = "ignore"
	DefaultSubscribeDelay = 100 * time.Millisecond
	DefaultWriteTimeout   = 5 * time.Second
	DefaultPingInterval   = 15 * time.Second
	DefaultStaleTimeout   = 60 * time.Second
	DefaultHandshakeWait  = 10 * time.Second
	DefaultHealthPort     = 8080
	DefaultEarlyRollDay   = 15
)

// DefaultReconnectDelays mirrors the platform client's automatic
// reconnect schedule. The last entry repeats indefinitely.
var DefaultReconnectDelays = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// DefaultInstruments covers the standard contract calendars: CME/CBOT
// equity index quarterlies, NYMEX energy monthlies, COMEX metals.
var DefaultInstruments = []Instrument{
	{Symbol: "MNQ", Exchange: "CME", Months: []int{3, 6, 9, 12}, EarlyRollDay: 15},
	{Symbol: "NQ", Exchange: "CME", Months: []int{3, 6, 9, 12}, EarlyRollDay: 15},
	{Symbol: "MES", Exchange: "CME", Months: []int{3, 6, 9, 12}, EarlyRollDay: 15},
	{Symbol: "ES", Exchange: "CME", Months: []int{3, 6, 9, 12}, EarlyRollDay: 15},
	{Symbol: "YM", Exchange: "CBOT", Months: []int{3, 6, 9, 12}, EarlyRollDay: 15},
	{Symbol: "MGC", Exchange: "COMEX", Months: []int{2, 4, 6, 8, 12}, EarlyRollDay: 15},
	{Symbol: "GC", Exchange: "COMEX", Months: []int{2, 4, 6, 8, 12}, EarlyRollDay: 15},
	{Symbol: "SI", Exchange: "COMEX", Months: []int{3, 5, 7, 9, 12}, EarlyRollDay: 15},
	{Symbol: "MCL", Exchange: "NYMEX", Months: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, EarlyRollDay: 15},
	{Symbol: "MNG", Exchange: "NYMEX", Months: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, EarlyRollDay: 15},
	{Symbol: "MBT", Exchange: "CME", Months: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, EarlyRollDay: 15},
	{Symbol: "MET", Exchange: "CME", Months: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, EarlyRollDay: 15},
}

func (c *CollectorConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.SearchTimeout == 0 {
		c.API.SearchTimeout = DefaultSearchTimeout
	}
	if c.API.HistoryTimeout == 0 {
		c.API.HistoryTimeout = DefaultHistoryTimeout
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateWindow == 0 {
		c.API.RateWindow = DefaultRateWindow
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Backfill defaults
	if c.Backfill.Days == 0 {
		c.Backfill.Days = DefaultBackfillDays
	}
	if c.Backfill.BarsPerRequest == 0 {
		c.Backfill.BarsPerRequest = DefaultBarsPerRequest
	}

	// Live defaults
	if c.Live.VolumeResetPolicy == "" {
		c.Live.VolumeResetPolicy = DefaultVolumePolicy
	}

	// Connection defaults
	if c.Connection.HubURL == "" {
		c.Connection.HubURL = DefaultHubURL
	}
	if len(c.Connection.ReconnectDelays) == 0 {
		c.Connection.ReconnectDelays = DefaultReconnectDelays
	}
	if c.Connection.SubscribeDelay == 0 {
		c.Connection.SubscribeDelay = DefaultSubscribeDelay
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.StaleTimeout == 0 {
		c.Connection.StaleTimeout = DefaultStaleTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeWait
	}

	// Instruments
	if len(c.Instruments) == 0 {
		c.Instruments = append([]Instrument(nil), DefaultInstruments...)
	}
	for i := range c.Instruments {
		if c.Instruments[i].EarlyRollDay == 0 {
			c.Instruments[i].EarlyRollDay = DefaultEarlyRollDay
		}
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
