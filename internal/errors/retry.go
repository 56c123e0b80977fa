package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"
)

// RetryConfig controls how source lookups are repeated
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// ShouldRetry decides whether err is worth another attempt; nil uses IsRetryable
	ShouldRetry func(err error) bool
	// OnRetry is called before each wait, after the failed attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the lookup retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		ShouldRetry:    IsRetryable,
	}
}

// Delay returns how long to wait after the given failed attempt (0-based).
// A rate limit error waits for the server's RetryAfter, or MaxBackoff when
// none was sent.
func (c RetryConfig) Delay(attempt int, err error) time.Duration {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Type == ErrTypeRateLimit {
		if appErr.RetryAfter > 0 && appErr.RetryAfter < c.MaxBackoff {
			return appErr.RetryAfter
		}
		return c.MaxBackoff
	}

	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(c.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d)
}

// Retry runs fn until it returns a value, a non-retryable error or the
// attempts run out. Only transport-level lookups go through here; workflow
// failures are never retried.
func Retry[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !shouldRetry(err) {
			return zero, err
		}
		if attempt >= config.MaxRetries {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := config.Delay(attempt, err)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// RetryWithBackoff is Retry for calls that only return an error
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
