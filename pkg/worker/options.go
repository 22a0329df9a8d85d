package worker

import (
	"log/slog"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/security"
)

// Option configures a Worker.
type Option interface {
	ApplyWorker(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyWorker(c *Config) { f(c) }

// Config holds worker configuration.
type Config struct {
	// WorkerID identifies this process in logs and status output.
	WorkerID string

	// WaitTimeout is the idle sleep between empty polls.
	WaitTimeout time.Duration

	// Backoff shapes every retry the worker performs.
	Backoff BackoffConfig

	// HousekeepingSpec is a cron expression for the periodic identity/load
	// log line. Empty disables housekeeping.
	HousekeepingSpec string

	Logger    *slog.Logger
	Telemetry Telemetry
	Observer  Observer
}

// WithWorkerID sets the worker's id for logs and status output.
func WithWorkerID(id string) Option {
	return optionFunc(func(c *Config) {
		c.WorkerID = id
	})
}

// WithWaitTimeout sets the idle sleep between empty polls.
func WithWaitTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.WaitTimeout = d
		}
	})
}

// WithBackoff overrides the retry backoff shape.
func WithBackoff(cfg BackoffConfig) Option {
	return optionFunc(func(c *Config) {
		c.Backoff = cfg
	})
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	})
}

// WithTelemetry installs a sink for errors swallowed at the job boundary.
func WithTelemetry(t Telemetry) Option {
	return optionFunc(func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	})
}

// WithObserver installs a copy-receiver for every emitted event.
func WithObserver(o Observer) Option {
	return optionFunc(func(c *Config) {
		c.Observer = o
	})
}

// WithHousekeeping enables the periodic identity/load log line on a cron
// schedule, e.g. "0 * * * *" for hourly.
func WithHousekeeping(cronSpec string) Option {
	return optionFunc(func(c *Config) {
		c.HousekeepingSpec = cronSpec
	})
}

// clampLimit bounds a configured concurrency limit.
func clampLimit(n int) int {
	return security.ClampConcurrency(n)
}
