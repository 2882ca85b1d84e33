// Package retry wraps a single provisioning or configuration step in a
// bounded retry with jittered exponential backoff. Only operations whose
// re-execution is safe may be wrapped; resource names are deterministic so
// that a retried create lands on "already exists" instead of a duplicate.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bundles the retry knobs for one class of operation. MaxAttempts
// counts total executions, including the first.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Retryable   func(error) bool
}

type options struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	retryable   func(error) bool
	onRetry     func(attempt int, delay time.Duration, err error)
}

func defaultOptions() options {
	return options{
		maxAttempts: 5,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		multiplier:  2.0,
		retryable:   func(err error) bool { return !IsFatal(err) },
	}
}

// Option configures a single WithExponentialBackoff call.
type Option func(*options)

// WithMaxAttempts sets the total number of executions, first attempt
// included. Values below 1 are treated as 1.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		o.baseDelay = d
	}
}

// WithMaxDelay caps the backoff curve.
func WithMaxDelay(d time.Duration) Option {
	return func(o *options) {
		o.maxDelay = d
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(o *options) {
		o.multiplier = m
	}
}

// WithRetryable replaces the predicate deciding whether an error is worth
// another attempt. Fatal-marked errors are never retried regardless of the
// predicate.
func WithRetryable(predicate func(error) bool) Option {
	return func(o *options) {
		o.retryable = predicate
	}
}

// WithOnRetry installs a hook invoked before each sleep with the attempt
// number that just failed, the chosen delay, and the error.
func WithOnRetry(hook func(attempt int, delay time.Duration, err error)) Option {
	return func(o *options) {
		o.onRetry = hook
	}
}

// WithPolicy applies every non-zero field of a Policy at once.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p.MaxAttempts > 0 {
			o.maxAttempts = p.MaxAttempts
		}
		if p.BaseDelay > 0 {
			o.baseDelay = p.BaseDelay
		}
		if p.MaxDelay > 0 {
			o.maxDelay = p.MaxDelay
		}
		if p.Multiplier > 0 {
			o.multiplier = p.Multiplier
		}
		if p.Retryable != nil {
			o.retryable = p.Retryable
		}
	}
}

// WithExponentialBackoff executes operation, retrying retryable failures
// until the attempt budget runs out. The final error is surfaced unchanged
// so callers can classify it; a cancelled context surfaces the context
// error instead.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if IsFatal(err) || !o.retryable(err) || attempt >= o.maxAttempts {
			return err
		}

		delay := backoffDelay(o.baseDelay, o.multiplier, o.maxDelay, attempt)
		if o.onRetry != nil {
			o.onRetry(attempt, delay, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes the sleep before the retry following the given
// attempt. The exponential curve caps at maxDelay; the actual delay is
// drawn uniformly from [0, cap] so concurrent failures do not retry in
// lockstep.
func backoffDelay(base time.Duration, multiplier float64, maxDelay time.Duration, attempt int) time.Duration {
	ceiling := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if ceiling > float64(maxDelay) {
		ceiling = float64(maxDelay)
	}
	return time.Duration(rand.Float64() * ceiling)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal marks err as not worth retrying. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err is marked fatal anywhere in its chain.
func IsFatal(err error) bool {
	var fatal *fatalError
	return errors.As(err, &fatal)
}
