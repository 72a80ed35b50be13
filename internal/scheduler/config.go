package scheduler

import (
	"time"

	"github.com/smallbiznis/railzway-braintree/internal/config"
)

// Config controls sweep intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	// MinAge skips rows touched recently; callers reading them reconcile on
	// their own.
	MinAge   time.Duration
	Lookback time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		BatchSize:   50,
		MinAge:      5 * time.Minute,
		Lookback:    72 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweep.Enabled,
		RunInterval: cfg.Sweep.Interval,
		BatchSize:   cfg.Sweep.BatchSize,
		MinAge:      cfg.Sweep.MinAge,
		Lookback:    cfg.Sweep.Lookback,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MinAge <= 0 {
		c.MinAge = defaults.MinAge
	}
	if c.Lookback <= 0 {
		c.Lookback = defaults.Lookback
	}
	return c
}
