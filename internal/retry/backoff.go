// Package retry implements exponential backoff for calls to external
// systems. Only background work uses it; request-path calls fail fast.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries int           // retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on any single delay
	Multiplier float64       // exponential growth factor
	Jitter     bool          // randomize each delay by up to ±10%
}

// DefaultConfig returns the schedule used for FAM pulls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do runs op until it succeeds, a non-retryable error occurs, the attempts
// are exhausted, or the context is done. The last error is returned.
func Do(ctx context.Context, cfg Config, name string, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 0 {
				log.Debug().Str("operation", name).Int("attempts", attempt+1).Msg("succeeded after retry")
			}
			return nil
		}

		if attempt == cfg.MaxRetries || !IsRetryableError(lastErr) {
			break
		}

		delay := calculateDelay(cfg, attempt)
		log.Warn().Err(lastErr).Str("operation", name).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// calculateDelay calculates the delay for the next retry attempt using exponential backoff
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// IsRetryableError determines if an error is worth retrying. Transport
// failures and upstream overload are; client errors are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retryable := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"no such host",
		"network unreachable",
		"broken pipe",
		"context deadline exceeded",
	}

	for _, marker := range retryable {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}
