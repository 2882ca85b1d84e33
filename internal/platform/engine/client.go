// Package engine adapts the external declarative apply engine. The engine
// is a black box: it is handed a rendered plan file and reports per-resource
// results. This package's job is to turn whatever comes back, including
// silence and garbage, into a classified Report.
package engine

import (
	"context"

	"github.com/lockstepd/lockstep/internal/plan"
)

// Outcome classifies one engine invocation.
type Outcome string

const (
	// OutcomeSucceeded means the engine confirmed the resource converged.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means the engine reported a definite failure.
	OutcomeFailed Outcome = "failed"

	// OutcomeUnknown means the engine could not say either way, typically
	// a long-running operation it stopped watching. Unknown is never
	// collapsed into Failed here; the reconciler resolves it.
	OutcomeUnknown Outcome = "unknown"
)

// Report is the classified result of one engine invocation.
type Report struct {
	Outcome Outcome

	// ID is the provider identifier, when the engine declared one.
	ID string

	// Outputs are the declared outputs, when the engine reported any.
	Outputs map[string]string

	// Message carries the engine's error or status detail for Failed and
	// Unknown outcomes.
	Message string

	// Transient marks Failed outcomes whose signature suggests a retry
	// could succeed.
	Transient bool
}

// Applier is the engine surface the provisioning pipeline consumes.
// Errors are reserved for adapter-internal failures (rendering, temp
// files, cancellation); every engine result, however mangled, arrives as
// a Report.
type Applier interface {
	Apply(ctx context.Context, doc plan.EngineResource) (*Report, error)
	Destroy(ctx context.Context, doc plan.EngineResource) (*Report, error)
}
