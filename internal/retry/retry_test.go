package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), 3, time.Millisecond,
		func(error) bool { return true },
		func(attempt int) error {
			calls++
			return nil
		})
	if err != nil {
		t.Fatalf("WithBackoff() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithBackoffRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), 5, time.Millisecond,
		func(error) bool { return true },
		func(attempt int) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("WithBackoff() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithBackoffStopsOnNonRetryable(t *testing.T) {
	sentinel := errors.New("permanent")
	attempts := 0
	err := WithBackoff(context.Background(), 5, time.Millisecond,
		func(error) bool { return false },
		func(attempt int) error {
			attempts++
			return sentinel
		})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithBackoff() error = %v, want sentinel", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (non-retryable must not loop)", attempts)
	}
}

func TestWithBackoffExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), 3, time.Millisecond,
		func(error) bool { return true },
		func(attempt int) error {
			attempts++
			return errors.New("still transient")
		})
	if err == nil {
		t.Fatal("WithBackoff() error = nil, want non-nil after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithBackoffRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := WithBackoff(ctx, 3, 50*time.Millisecond,
		func(error) bool { return true },
		func(attempt int) error {
			attempts++
			return errors.New("transient")
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WithBackoff() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 before the cancelled context is observed", attempts)
	}
}

func TestLimiterWaitIsPerKey(t *testing.T) {
	l := NewLimiter(1000, 1)
	ctx := context.Background()
	if err := l.Wait(ctx, "batch-a"); err != nil {
		t.Fatalf("Wait(batch-a) error = %v", err)
	}
	if err := l.Wait(ctx, "batch-b"); err != nil {
		t.Fatalf("Wait(batch-b) error = %v", err)
	}
}
