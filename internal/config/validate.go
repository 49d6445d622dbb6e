package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.RateLimit < 1 {
		return errors.New("api.rate_limit must be >= 1")
	}
	if c.API.RateWindow <= 0 {
		return errors.New("api.rate_window must be > 0")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Backfill.Days < 1 {
		return errors.New("backfill.days must be >= 1")
	}
	if c.Backfill.BarsPerRequest < 1 {
		return errors.New("backfill.bars_per_request must be >= 1")
	}

	switch c.Live.VolumeResetPolicy {
	case "ignore", "rebase":
	default:
		return fmt.Errorf("live.volume_reset_policy must be \"ignore\" or \"rebase\", got %q", c.Live.VolumeResetPolicy)
	}

	if c.Connection.HubURL == "" {
		return errors.New("connection.hub_url is required")
	}
	if c.Connection.SubscribeDelay < 0 {
		return errors.New("connection.subscribe_delay must be >= 0")
	}

	if len(c.Instruments) == 0 {
		return errors.New("at least one instrument is required")
	}
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return errors.New("instrument symbol is required")
		}
		if len(inst.Months) == 0 {
			return fmt.Errorf("instrument %s: months is required", inst.Symbol)
		}
		for _, m := range inst.Months {
			if m < 1 || m > 12 {
				return fmt.Errorf("instrument %s: month %d out of range", inst.Symbol, m)
			}
		}
		if inst.EarlyRollDay < 1 || inst.EarlyRollDay > 28 {
			return fmt.Errorf("instrument %s: early_roll_day must be between 1 and 28, got %d", inst.Symbol, inst.EarlyRollDay)
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
