// Package retry implements the persistence gateway's resilience wrapper:
// a bounded attempt loop with linear backoff (delay = base * attempt) and
// transient/permanent error classification.
package retry

import (
	"context"
	"errors"
	"time"

	"meshtrack/pkg/logger"
)

// Config bounds the attempt loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig mirrors the documented design: 3 attempts, 1s linear base.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	return c
}

// Do runs op up to cfg.MaxAttempts times, sleeping BaseDelay*attempt between
// attempts. Permanent errors are returned unwrapped on first occurrence;
// exhausting the budget on transient errors yields an *ExhaustedError tagged
// with label. The backoff wait honors ctx cancellation.
func Do(ctx context.Context, cfg Config, label string, op func(ctx context.Context) error) error {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if Classify(err) == Permanent {
			var pe *permanentError
			if errors.As(err, &pe) {
				return pe.err
			}
			return err
		}

		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.BaseDelay * time.Duration(attempt)
		logger.WarnCtx(ctx, "%s failed (attempt %d/%d), retrying in %v: %v",
			label, attempt, cfg.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return &ExhaustedError{Label: label, Attempts: attempt, Err: lastErr}
		case <-time.After(delay):
		}
	}

	return &ExhaustedError{Label: label, Attempts: cfg.MaxAttempts, Err: lastErr}
}
