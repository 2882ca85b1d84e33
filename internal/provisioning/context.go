package provisioning

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/engine"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/retry"
	"github.com/lockstepd/lockstep/internal/state"
	"github.com/lockstepd/lockstep/internal/telemetry"
	"github.com/lockstepd/lockstep/internal/util/naming"
)

// Context wraps all dependencies and shared state needed by a pipeline
// phase. External collaborators are carried as narrow interfaces so tests
// can substitute fakes.
type Context struct {
	context.Context

	Config *config.Config
	Plan   *plan.DeploymentPlan
	State  *state.Manager

	Engine    engine.Applier
	Provider  provider.Client
	Resolver  AmbiguityResolver
	Waiter    PropagationWaiter
	ProberFor ProberFactory

	Observer Observer
	Logger   zerolog.Logger
	Metrics  *telemetry.Metrics
	Timeouts config.Timeouts
	Retry    retry.Policy

	RunID  string
	Result *Result
}

// NewContext creates a pipeline context with a fresh run identifier.
// Collaborator fields (Engine, Provider, Resolver, Waiter, ProberFor,
// Metrics) are wired by the caller.
func NewContext(ctx context.Context, cfg *config.Config, deploymentPlan *plan.DeploymentPlan, manager *state.Manager, logger zerolog.Logger) *Context {
	runID := uuid.NewString()
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Plan:     deploymentPlan,
		State:    manager,
		Observer: NewLogObserver(logger),
		Logger:   logger,
		Timeouts: *config.LoadTimeouts(),
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Multiplier:  cfg.Retry.Multiplier,
		},
		RunID:  runID,
		Result: NewResult(runID, cfg.Project, cfg.Environment),
	}
}

// ResourceName returns the deterministic provider-facing name for a
// logical resource. Reconciliation depends on this mapping being stable
// across runs.
func (c *Context) ResourceName(logical string) string {
	return naming.Resource(c.Config.Project, c.Config.Environment, logical)
}

// SaveState persists tracked state after a mutation. An unwritable state
// file means later runs would lose track of live resources, so phases
// treat it as a configuration error and stop.
func (c *Context) SaveState() error {
	if err := c.State.Save(c); err != nil {
		return &StepError{Kind: KindConfiguration, Step: "state-save", Err: err}
	}
	return nil
}
