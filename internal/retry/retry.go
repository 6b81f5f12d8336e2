// Package retry wraps transient-failure-prone actions with bounded
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// ExhaustedError wraps the last attempt's error once every attempt has been
// spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do invokes fn up to maxAttempts times, sleeping baseDelay * 2^(attempt-1)
// between attempts (attempt counted from 1). The sleep is context-aware:
// cancellation aborts the wait and returns the context error immediately.
// On exhaustion the last error is returned wrapped in *ExhaustedError.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		delay *= 2
	}
	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
