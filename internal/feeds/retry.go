// Package feeds runs periodic upstream polls with bounded retry.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
)

var ErrFeedExhausted = errors.New("feed retries exhausted")

type RetryConfig struct {
	Interval   time.Duration // pause after a successful poll
	RetryDelay time.Duration // fixed pause after a failed poll
	MaxRetries int           // consecutive failures that stop the loop
}

func (c RetryConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("feed interval must be positive")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("feed retry delay must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("feed max retries must be at least 1")
	}
	return nil
}

// RunWithRetry polls immediately and then on every interval. A success resets the
// failure count. After MaxRetries consecutive failures it returns ErrFeedExhausted
// wrapping the last error; cancellation returns ctx.Err().
func RunWithRetry(ctx context.Context, name string, cfg RetryConfig, poll func(ctx context.Context) error) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("feed %s: %w", name, err)
	}
	feedLogger := logger.GetForComponent("feed").With().Str("feed", name).Logger()

	failures := 0
	for {
		wait := cfg.Interval
		if err := poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			metrics.FeedFailures.WithLabelValues(name).Inc()
			feedLogger.Warn().Err(err).Int("failures", failures).Int("max_retries", cfg.MaxRetries).Msg("Feed poll failed")
			if failures >= cfg.MaxRetries {
				feedLogger.Error().Msg("Feed giving up after consecutive failures")
				return fmt.Errorf("%w: %s after %d attempts: %w", ErrFeedExhausted, name, failures, err)
			}
			wait = cfg.RetryDelay
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			feedLogger.Info().Msg("Feed stopped due to context cancellation")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
