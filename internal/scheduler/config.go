package scheduler

import (
	"time"

	"github.com/smallbiznis/paygate/internal/config"
)

// Config controls the outbox sweep.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 30 * time.Second,
		BatchSize:   100,
		JobTimeout:  20 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{RunInterval: cfg.Events.SweepInterval}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
