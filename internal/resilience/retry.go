// Package resilience provides the retry and circuit-breaker primitives that
// guard calls to external speech and language services.
//
// [Retry] is a bounded attempt loop with exponential backoff, used per
// transcription segment. [CircuitBreaker] is a classic three-state breaker
// (closed → open → half-open) wrapped around the analysis provider so a dead
// endpoint degrades insight extraction quickly instead of timing out every
// request.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy describes a bounded retry loop with exponential backoff.
// The zero value is not usable; use [DefaultRetryPolicy] or fill all fields.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failure. Each subsequent failure
	// doubles the delay.
	BaseDelay time.Duration

	// MaxDelay, when positive, caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the transcription client's contract: three
// attempts with a doubling backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Retry runs fn up to p.MaxAttempts times, sleeping between attempts with
// exponential backoff. It returns nil on the first success; after the final
// failure it returns the last error unchanged so callers can wrap it with
// their own sentinel. The backoff sleep honours ctx cancellation, in which
// case the context error is returned.
//
// name appears in the warn log emitted on each failed attempt.
func Retry(ctx context.Context, name string, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("resilience: %s: %w", name, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		slog.Warn("operation failed",
			"name", name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"err", lastErr,
		)

		if attempt == p.MaxAttempts {
			break
		}

		wait := delay
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("resilience: %s: %w", name, ctx.Err())
		}
		delay *= 2
	}

	return lastErr
}
