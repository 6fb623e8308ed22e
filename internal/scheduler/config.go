package scheduler

import (
	"time"
)

// Config controls scheduler cadence and per-job deadlines.
type Config struct {
	RunInterval   time.Duration
	ReportTimeout time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Minute,
		ReportTimeout: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = defaults.ReportTimeout
	}
	return c
}
