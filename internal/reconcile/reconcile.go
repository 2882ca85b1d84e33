package reconcile

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

// UnresolvedError reports that a resource stayed unobservable for the whole
// reconciliation window. The apply that produced it is treated as failed.
type UnresolvedError struct {
	Kind   string
	Name   string
	Window time.Duration
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s %q not observed by provider within %s", e.Kind, e.Name, e.Window)
}

// IsUnresolved reports whether err means the reconciliation window expired
// without the resource appearing.
func IsUnresolved(err error) bool {
	var unresolved *UnresolvedError
	return errors.As(err, &unresolved)
}

// Reconciler turns an ambiguous apply into a definite outcome by querying
// the provider for the resource's deterministic name.
type Reconciler struct {
	reader   provider.Reader
	window   time.Duration
	interval time.Duration
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewReconciler creates a reconciler that polls reader every poll interval
// for at most the reconcile window from timeouts.
func NewReconciler(reader provider.Reader, timeouts config.Timeouts, logger zerolog.Logger, metrics *telemetry.Metrics) *Reconciler {
	return &Reconciler{
		reader:   reader,
		window:   timeouts.Reconcile,
		interval: timeouts.PollInterval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve polls the provider for the named resource until it appears or the
// window expires. A found resource is returned with its provider identifier
// and observed outputs so the caller can import it. An expired window
// returns an UnresolvedError; caller cancellation returns the context error.
func (r *Reconciler) Resolve(ctx context.Context, kind, name string) (*provider.Resource, error) {
	r.logger.Info().
		Str("kind", kind).
		Str("name", name).
		Dur("window", r.window).
		Msg("resolving ambiguous apply against provider")

	var found *provider.Resource
	err := wait.PollUntilContextTimeout(ctx, r.interval, r.window, true, func(ctx context.Context) (bool, error) {
		resource, err := r.reader.GetResource(ctx, kind, name)
		if err != nil {
			// Query failures do not end the window; the resource may
			// still surface on a later poll.
			r.logger.Debug().Err(err).Str("name", name).Msg("provider query failed, will poll again")
			return false, nil
		}
		if resource == nil {
			return false, nil
		}
		found = resource
		return true, nil
	})

	if err == nil {
		r.metrics.RecordReconciliation(kind, "imported")
		r.logger.Info().
			Str("kind", kind).
			Str("name", name).
			Str("id", found.ID).
			Msg("ambiguous apply resolved, importing resource")
		return found, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if wait.Interrupted(err) {
		r.metrics.RecordReconciliation(kind, "failed")
		r.logger.Warn().
			Str("kind", kind).
			Str("name", name).
			Dur("window", r.window).
			Msg("reconciliation window expired without observing resource")
		return nil, &UnresolvedError{Kind: kind, Name: name, Window: r.window}
	}

	return nil, err
}
