package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateMDL(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateWarm(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTMDB() error {
	if c.TMDB.RequestsPerSecond <= 0 {
		return errors.New("tmdb.requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateMDL() error {
	if c.MDL.RequestTimeoutSeconds <= 0 {
		return errors.New("mdl.request_timeout_seconds must be positive")
	}
	if !c.MDL.BreakerEnabled {
		return nil
	}
	if c.MDL.BreakerFailureThreshold <= 0 {
		return errors.New("mdl.breaker_failure_threshold must be positive when mdl.breaker_enabled is true")
	}
	if c.MDL.BreakerCooldownSeconds <= 0 {
		return errors.New("mdl.breaker_cooldown_seconds must be positive when mdl.breaker_enabled is true")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TitleTTLHours <= 0 {
		return errors.New("cache.title_ttl_hours must be positive")
	}
	if c.Cache.PersonTTLHours <= 0 {
		return errors.New("cache.person_ttl_hours must be positive")
	}
	if c.Cache.StaleSweepHours <= 0 {
		return errors.New("cache.stale_sweep_hours must be positive")
	}
	if c.Cache.StaleSweepHours > c.Cache.TitleTTLHours {
		return fmt.Errorf("cache.stale_sweep_hours (%d) must not exceed cache.title_ttl_hours (%d)",
			c.Cache.StaleSweepHours, c.Cache.TitleTTLHours)
	}
	return nil
}

func (c *Config) validateWarm() error {
	if c.Warm.Concurrency <= 0 {
		return errors.New("warm.concurrency must be positive")
	}
	if c.Warm.RoundDelayMS < 0 {
		return errors.New("warm.round_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.TimeBudgetSeconds <= 0 {
		return errors.New("sync.time_budget_seconds must be positive")
	}
	if c.Sync.ItemDelayMS < 0 {
		return errors.New("sync.item_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
