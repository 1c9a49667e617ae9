// Package retry wraps fallible operations in exponential backoff with
// jitter. Validation, configuration, and file-size errors never retry;
// everything else gets MaxRetries additional attempts.
package retry

import (
	"context"
	"math/rand"
	"time"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries   int           // additional attempts after the first
	InitialDelay time.Duration // delay before the first retry, doubled after each
	MaxDelay     time.Duration // cap on a single delay; 0 = uncapped
	Jitter       float64       // fraction of the delay added randomly, e.g. 0.1
}

// DefaultConfig matches the provider call sites: three retries starting
// at one second.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Jitter:       0.1,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxRetries, or ctx is done. The last error is returned on exhaustion.
func Do(ctx context.Context, cfg Config, op string, fn func(ctx context.Context) error) error {
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if cfg.Jitter > 0 {
				wait += time.Duration(rand.Float64() * cfg.Jitter * float64(delay))
			}
			logging.Retry("%s attempt %d/%d failed: %v, waiting %v", op, attempt, cfg.MaxRetries, lastErr, wait)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			delay *= 2
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				logging.Retry("%s succeeded on attempt %d", op, attempt+1)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if types.IsNonRetryable(lastErr) {
			logging.RetryDebug("%s failed with non-retryable error: %v", op, lastErr)
			return lastErr
		}
	}

	logging.Retry("%s exhausted %d retries: %v", op, cfg.MaxRetries, lastErr)
	return lastErr
}
