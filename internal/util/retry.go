// ABOUTME: Retry loop with exponential backoff and jitter for provider calls
// ABOUTME: Used by the OpenAI client for embedding and chat requests
package util

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// MaxBackoff caps the delay between attempts
const MaxBackoff = 30 * time.Second

// Policy controls how Retry repeats a failing call
type Policy struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries int
	// BaseDelay is doubled on every retry before jitter
	BaseDelay time.Duration
	// Retryable decides whether an error is transient. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before sleeping for the next attempt
	OnRetry func(attempt int, err error)
}

// CalculateBackoff returns baseDelay * 2^attempt capped at MaxBackoff,
// with ±25% jitter. Attempt 0 has no delay.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// keeps the shift from overflowing
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > MaxBackoff || backoff <= 0 {
		backoff = MaxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a permanent error, exhausts
// p.MaxRetries, or ctx ends. Errors carry the attempt number.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if err := Sleep(ctx, CalculateBackoff(p.BaseDelay, attempt)); err != nil {
				return zero, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}

		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if ctx.Err() != nil {
			return zero, lastErr
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}
