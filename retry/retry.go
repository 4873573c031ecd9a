// Package retry provides exponential backoff with jitter around a
// classified error set. Operations run up to MaxRetries+1 times; between
// attempts k the caller sleeps min(MaxDelay, BaseDelay*2^(k-1)) plus a
// random jitter of up to a quarter of the uncapped backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds the retry tunables.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the backoff base for the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential component of the sleep.
	MaxDelay time.Duration

	// Jitter enables the random component. Disabled in tests that
	// assert on timing.
	Jitter bool

	// RetryIf classifies errors. A nil classifier retries everything
	// except Permanent errors.
	RetryIf func(error) bool
}

// DefaultConfig matches the crawl-layer defaults.
var DefaultConfig = Config{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
	Jitter:     true,
}

// QuickConfig is for cheap in-process operations.
var QuickConfig = Config{
	MaxRetries: 2,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   time.Second,
	Jitter:     true,
}

func (c Config) shouldRetry(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if c.RetryIf == nil {
		return true
	}
	return c.RetryIf(err)
}

// sleepFor computes the delay before retry k (1-based).
func (c Config) sleepFor(k int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(2, float64(k-1))
	sleep := math.Min(float64(c.MaxDelay), backoff)
	if c.Jitter {
		sleep += rand.Float64() * backoff * 0.25
	}
	return time.Duration(sleep)
}

// Do runs fn until it succeeds, exhausts retries, or hits a
// non-retryable error. The last error is returned on failure.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is the generic form of Do for operations that return a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.sleepFor(attempt)):
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !cfg.shouldRetry(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// Permanent marks an error as non-retryable regardless of the
// configured classifier.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string {
	if p.Err == nil {
		return "permanent error"
	}
	return p.Err.Error()
}

func (p *Permanent) Unwrap() error { return p.Err }

// NewPermanent wraps err as non-retryable. Returns nil for nil input.
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// IsPermanent reports whether err carries a Permanent marker anywhere
// in its chain.
func IsPermanent(err error) bool {
	var p *Permanent
	return errors.As(err, &p)
}
