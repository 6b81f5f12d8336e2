package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), 5, 10*time.Millisecond, func() error {
		calls++
		if calls <= 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	// Two failures sleep 10ms then 20ms: total delay at least base*(2^0+2^1).
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected at least 30ms of backoff, got %s", elapsed)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	underlying := errors.New("still broken")
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return underlying
	})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if ex.Attempts != 3 {
		t.Fatalf("expected 3 attempts reported, got %d", ex.Attempts)
	}
	if !errors.Is(err, underlying) {
		t.Fatal("expected underlying error preserved")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, 10, time.Second, func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call before the long backoff, got %d", calls)
	}
}

func TestDoSingleAttemptNoSleep(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), 1, time.Second, func() error {
		return errors.New("fail")
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("single attempt must not sleep")
	}
}
