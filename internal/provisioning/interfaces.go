package provisioning

import (
	"context"

	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/probe"
)

// Phase defines the interface for a pipeline phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase against the shared context.
	Provision(ctx *Context) error
}

// AmbiguityResolver turns an Unknown apply outcome into a definite one by
// querying the provider for the resource's deterministic name.
// Implemented by reconcile.Reconciler.
type AmbiguityResolver interface {
	Resolve(ctx context.Context, kind, name string) (*provider.Resource, error)
}

// PropagationWaiter blocks until a written role binding is readable back
// from the provider. Implemented by grants.Waiter.
type PropagationWaiter interface {
	WaitEffective(ctx context.Context, binding provider.Binding) error
}

// WorkloadProber runs verification checks against a deployed workload.
// Implemented by probe.Prober.
type WorkloadProber interface {
	Run(ctx context.Context) probe.Report
}

// ProberFactory builds a prober once the workload endpoint is known; the
// endpoint only exists after the workload resource has been applied.
type ProberFactory func(endpoint string) WorkloadProber
