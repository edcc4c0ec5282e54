package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	BillingBatchSize int
	PenaltyBatchSize int
	NoticeBatchSize  int
	JobTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      time.Hour,
		BillingBatchSize: 100,
		PenaltyBatchSize: 100,
		NoticeBatchSize:  50,
		JobTimeout:       5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BillingBatchSize <= 0 {
		c.BillingBatchSize = defaults.BillingBatchSize
	}
	if c.PenaltyBatchSize <= 0 {
		c.PenaltyBatchSize = defaults.PenaltyBatchSize
	}
	if c.NoticeBatchSize <= 0 {
		c.NoticeBatchSize = defaults.NoticeBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
