package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/telemetry"
)

// PropagationTimeoutError reports that a role binding was written but never
// became visible within the propagation timeout. Dependent steps must not
// proceed past it.
type PropagationTimeoutError struct {
	Binding provider.Binding
	Waited  time.Duration
}

func (e *PropagationTimeoutError) Error() string {
	return fmt.Sprintf("role binding principal=%q role=%q scope=%q not effective after %s",
		e.Binding.Principal, e.Binding.Role, e.Binding.Scope, e.Waited)
}

// IsPropagationTimeout reports whether err means a binding never became
// visible in time.
func IsPropagationTimeout(err error) bool {
	var timeout *PropagationTimeoutError
	return errors.As(err, &timeout)
}

// Waiter polls the provider until a written role binding is readable back.
// Visibility is checked through the provider's listing API, never by
// attempting the privileged operation the binding enables.
type Waiter struct {
	reader   provider.Reader
	timeout  time.Duration
	interval time.Duration
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewWaiter creates a waiter that polls reader every poll interval for at
// most the propagation timeout from timeouts.
func NewWaiter(reader provider.Reader, timeouts config.Timeouts, logger zerolog.Logger, metrics *telemetry.Metrics) *Waiter {
	return &Waiter{
		reader:   reader,
		timeout:  timeouts.Propagation,
		interval: timeouts.PollInterval,
		logger:   logger,
		metrics:  metrics,
	}
}

// WaitEffective blocks until the exact binding triple is visible to the
// provider's read API. It returns nil once the binding is effective, a
// PropagationTimeoutError when the timeout expires first, and the context
// error when the caller cancels.
func (w *Waiter) WaitEffective(ctx context.Context, binding provider.Binding) error {
	w.logger.Info().
		Str("principal", binding.Principal).
		Str("role", binding.Role).
		Str("scope", binding.Scope).
		Dur("timeout", w.timeout).
		Msg("waiting for role binding to propagate")

	start := time.Now()
	polls := 0
	err := wait.PollUntilContextTimeout(ctx, w.interval, w.timeout, true, func(ctx context.Context) (bool, error) {
		polls++
		w.metrics.RecordPropagationPoll()

		listed, err := w.reader.ListRoleBindings(ctx, binding.Principal, binding.Scope)
		if err != nil {
			// The read API can lag or throttle; keep polling until the
			// timeout decides.
			w.logger.Debug().Err(err).Msg("role binding listing failed, will poll again")
			return false, nil
		}
		return containsBinding(listed, binding), nil
	})

	if err == nil {
		waited := time.Since(start)
		w.metrics.ObservePropagationWait(waited)
		w.logger.Info().
			Str("principal", binding.Principal).
			Str("role", binding.Role).
			Int("polls", polls).
			Dur("waited", waited).
			Msg("role binding is effective")
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if wait.Interrupted(err) {
		w.logger.Error().
			Str("principal", binding.Principal).
			Str("role", binding.Role).
			Str("scope", binding.Scope).
			Int("polls", polls).
			Msg("role binding did not propagate in time")
		return &PropagationTimeoutError{Binding: binding, Waited: w.timeout}
	}

	return err
}

// containsBinding reports whether the exact triple appears in listed.
// A binding with the right principal but a different role or scope does
// not count.
func containsBinding(listed []provider.Binding, want provider.Binding) bool {
	for _, b := range listed {
		if b.Principal == want.Principal && b.Role == want.Role && b.Scope == want.Scope {
			return true
		}
	}
	return false
}
