package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// BackoffConfig holds the exponential-backoff shape shared by both retry
// policies.
type BackoffConfig struct {
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay regardless of attempt count.
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to the delay after each failed attempt.
	BackoffMultiplier float64

	// JitterFraction randomizes the delay by ±JitterFraction.
	JitterFraction float64
}

// DefaultBackoffConfig is the shape used for control-plane calls: start 1s, cap
// 30s, jitter ±20%.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.2,
	}
}

func (c BackoffConfig) next(backoff time.Duration) time.Duration {
	jitter := time.Duration(float64(backoff) * c.JitterFraction * (rand.Float64()*2 - 1))
	sleep := backoff + jitter
	if sleep < 0 {
		sleep = backoff
	}
	grown := time.Duration(float64(backoff) * c.BackoffMultiplier)
	if grown > c.MaxBackoff {
		grown = c.MaxBackoff
	}
	return sleep
}

// UntilSuccess invokes f, retrying indefinitely with bounded backoff on
// failure until it succeeds or ctx is done. It is used for the handshake
// call, which has no meaningful user-facing timeout to give up on.
func UntilSuccess(ctx context.Context, cfg BackoffConfig, logger *slog.Logger, f func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	backoff := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := f()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("retrying after failure", "attempt", attempt, "error", err)

		sleep := cfg.next(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}

// UntilTimeout invokes f, retrying with backoff until either it succeeds
// or the cumulative elapsed time exceeds budget, at which point it returns
// the last observed error. It is used for progress/ping updates (budget =
// 5s for progress reporting) so a dead control-plane cannot stall a running job
// permanently.
func UntilTimeout(ctx context.Context, budget time.Duration, cfg BackoffConfig, logger *slog.Logger, f func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	deadline := time.Now().Add(budget)
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; ; attempt++ {
		lastErr = f()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return lastErr
		}

		logger.Warn("retrying after failure", "attempt", attempt, "error", lastErr, "budget", budget)

		sleep := cfg.next(backoff)
		remaining := time.Until(deadline)
		if sleep > remaining {
			sleep = remaining
		}
		if sleep <= 0 {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
