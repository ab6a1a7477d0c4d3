// Package worker provides background job processing for InferGuard.
package worker

import (
	"time"
)

// SweepConfig holds configuration for the health check sweep job.
type SweepConfig struct {
	// Concurrency is the number of checks executed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each individual check execution.
	// Default: 30 seconds
	Timeout time.Duration

	// CollectInfra samples the cloud fleet after the checks finish.
	// Default: true
	CollectInfra bool
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Concurrency:  3,
		Timeout:      30 * time.Second,
		CollectInfra: true,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	def := DefaultSweepConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
