package reconciler

import (
	"time"

	"github.com/rcarraroia/comademig/internal/config"
)

// Config controls reconciler intervals and batch sizes.
type Config struct {
	RunInterval  time.Duration
	BatchSize    int
	RetryCeiling int
	// ItemDelay spaces gateway calls between rows. Zero disables it.
	ItemDelay    time.Duration
	RecoverAfter time.Duration
	JobTimeout   time.Duration
	LockTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  5 * time.Minute,
		BatchSize:    50,
		RetryCeiling: 3,
		ItemDelay:    5 * time.Second,
		RecoverAfter: 15 * time.Minute,
		JobTimeout:   10 * time.Minute,
		LockTTL:      15 * time.Minute,
	}
}

func fromSettings(c config.ReconcilerConfig) Config {
	return Config{
		RunInterval:  c.RunInterval,
		BatchSize:    c.BatchSize,
		RetryCeiling: c.RetryCeiling,
		ItemDelay:    c.ItemDelay,
		RecoverAfter: c.RecoverAfter,
		JobTimeout:   c.JobTimeout,
		LockTTL:      c.LockTTL,
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
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = defaults.RetryCeiling
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = 0
	}
	if c.RecoverAfter <= 0 {
		c.RecoverAfter = defaults.RecoverAfter
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	return c
}
