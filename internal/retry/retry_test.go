package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithExponentialBackoff_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_AttemptsAreBounded(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	operation := func() error {
		attempts++
		return persistent
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation,
		WithMaxAttempts(3),
		WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Fatal("Expected error after exhausting attempts, got nil")
	}
	// MaxAttempts counts total executions, first attempt included
	if attempts != 3 {
		t.Errorf("Expected exactly 3 attempts, got: %d", attempts)
	}
	// The final error must come back unchanged, not wrapped
	if err != persistent {
		t.Errorf("Expected the operation's error unchanged, got: %v", err)
	}
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := WithExponentialBackoff(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected error due to context cancellation, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before context check, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_ContextTimeout(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := WithExponentialBackoff(ctx, operation,
		WithBaseDelay(200*time.Millisecond),
		WithMultiplier(1.0),
		WithMaxAttempts(10))

	if err == nil {
		t.Error("Expected error due to context timeout, got nil")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Expected timeout to cut retries short, took: %v", time.Since(start))
	}
	if attempts > 3 {
		t.Errorf("Expected few attempts before timeout, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_FatalError(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return Fatal(errors.New("fatal error"))
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected fatal error, got nil")
	}
	if !IsFatal(err) {
		t.Errorf("Expected fatal error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retries for fatal error), got: %d", attempts)
	}
}

func TestWithExponentialBackoff_RetryablePredicate(t *testing.T) {
	notWorthIt := errors.New("bad credentials")
	attempts := 0
	operation := func() error {
		attempts++
		return notWorthIt
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation,
		WithBaseDelay(10*time.Millisecond),
		WithRetryable(func(err error) bool { return !errors.Is(err, notWorthIt) }))

	if err != notWorthIt {
		t.Errorf("Expected the operation's error unchanged, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a non-retryable error, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_OnRetryHook(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	}

	type retryEvent struct {
		attempt int
		delay   time.Duration
	}
	var events []retryEvent

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation,
		WithBaseDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(2.0),
		WithOnRetry(func(attempt int, delay time.Duration, err error) {
			events = append(events, retryEvent{attempt: attempt, delay: delay})
		}))

	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 retry events, got: %d", len(events))
	}

	// Delays are jittered, so only the per-attempt ceiling is stable:
	// 10ms, 20ms, then capped at 25ms
	ceilings := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		25 * time.Millisecond,
	}
	for i, event := range events {
		if event.attempt != i+1 {
			t.Errorf("Event %d: expected attempt %d, got %d", i, i+1, event.attempt)
		}
		if event.delay < 0 || event.delay > ceilings[i] {
			t.Errorf("Event %d: delay %v outside [0, %v]", i, event.delay, ceilings[i])
		}
	}
}

func TestWithExponentialBackoff_WithPolicy(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	ctx := context.Background()
	policy := Policy{
		MaxAttempts: 2,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	}
	_ = WithExponentialBackoff(ctx, operation, WithPolicy(policy))

	if attempts != 2 {
		t.Errorf("Expected 2 attempts from policy, got: %d", attempts)
	}
}

func TestBackoffDelay_StaysWithinCurve(t *testing.T) {
	base := 50 * time.Millisecond
	maxDelay := 200 * time.Millisecond

	for attempt := 1; attempt <= 6; attempt++ {
		ceiling := base * time.Duration(1<<(attempt-1))
		if ceiling > maxDelay {
			ceiling = maxDelay
		}
		for i := 0; i < 50; i++ {
			delay := backoffDelay(base, 2.0, maxDelay, attempt)
			if delay < 0 || delay > ceiling {
				t.Fatalf("Attempt %d: delay %v outside [0, %v]", attempt, delay, ceiling)
			}
		}
	}
}

func TestFatal(t *testing.T) {
	t.Run("Nil error", func(t *testing.T) {
		err := Fatal(nil)
		if err != nil {
			t.Errorf("Expected nil, got: %v", err)
		}
	})

	t.Run("Non-nil error", func(t *testing.T) {
		originalErr := errors.New("test error")
		err := Fatal(originalErr)

		if err == nil {
			t.Error("Expected non-nil error")
		}
		if !IsFatal(err) {
			t.Error("Expected error to be fatal")
		}
		if err.Error() != originalErr.Error() {
			t.Errorf("Expected error message %q, got %q", originalErr.Error(), err.Error())
		}
	})

	t.Run("Unwraps to original", func(t *testing.T) {
		originalErr := errors.New("base error")
		err := Fatal(originalErr)
		if !errors.Is(err, originalErr) {
			t.Error("Expected fatal error to unwrap to the original")
		}
	})
}

func TestIsFatal(t *testing.T) {
	t.Run("Non-fatal error", func(t *testing.T) {
		err := errors.New("regular error")
		if IsFatal(err) {
			t.Error("Expected non-fatal error")
		}
	})

	t.Run("Fatal error", func(t *testing.T) {
		err := Fatal(errors.New("fatal error"))
		if !IsFatal(err) {
			t.Error("Expected fatal error")
		}
	})

	t.Run("Wrapped fatal error", func(t *testing.T) {
		err := Fatal(errors.New("base error"))
		wrapped := errors.Join(err, errors.New("additional context"))
		if !IsFatal(wrapped) {
			t.Error("Expected wrapped fatal error to be detected")
		}
	})
}
