package orchestration

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/grants"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/engine"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/probe"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/provisioning/apply"
	"github.com/lockstepd/lockstep/internal/provisioning/configure"
	"github.com/lockstepd/lockstep/internal/provisioning/destroy"
	"github.com/lockstepd/lockstep/internal/provisioning/verify"
	"github.com/lockstepd/lockstep/internal/reconcile"
	"github.com/lockstepd/lockstep/internal/state"
	"github.com/lockstepd/lockstep/internal/telemetry"
)

// Deployment orchestrates the provisioning workflow for one deployment.
type Deployment struct {
	engine   engine.Applier
	provider provider.Client
	config   *config.Config
	plan     *plan.DeploymentPlan
	state    *state.Manager
	logger   zerolog.Logger
	metrics  *telemetry.Metrics

	// Phases
	applyProvisioner     *apply.Provisioner
	configureProvisioner *configure.Provisioner
	verifyProvisioner    *verify.Provisioner
	destroyProvisioner   *destroy.Provisioner
}

// NewDeployment creates a deployment over the given engine and provider
// clients. The plan is built and validated up front, so a dependency cycle
// or a dangling reference never reaches a phase.
func NewDeployment(engineClient engine.Applier, providerClient provider.Client, cfg *config.Config, logger zerolog.Logger) (*Deployment, error) {
	deploymentPlan, err := plan.Build(cfg.Resources)
	if err != nil {
		return nil, &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "plan", Err: err}
	}
	if err := provisioning.ValidatePlan(cfg, deploymentPlan); err != nil {
		return nil, err
	}

	manager := state.NewManager(cfg.State.Path, cfg.Project, cfg.Environment)
	manager.SetLogger(logger)

	return &Deployment{
		engine:               engineClient,
		provider:             providerClient,
		config:               cfg,
		plan:                 deploymentPlan,
		state:                manager,
		logger:               logger,
		metrics:              telemetry.NewMetrics(),
		applyProvisioner:     apply.NewProvisioner(),
		configureProvisioner: configure.NewProvisioner(),
		verifyProvisioner:    verify.NewProvisioner(),
		destroyProvisioner:   destroy.NewProvisioner(),
	}, nil
}

// FromConfig creates a deployment backed by the configured engine and
// provider binaries.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Deployment, error) {
	timeouts := config.LoadTimeouts()
	engineClient := engine.NewCLI(cfg.Engine.Command, timeouts.Engine, logger)
	providerClient := provider.NewCLIClient(cfg.Provider.Command, timeouts.Provider, logger)
	return NewDeployment(engineClient, providerClient, cfg, logger)
}

// Plan returns the validated deployment plan.
func (d *Deployment) Plan() *plan.DeploymentPlan {
	return d.plan
}

// State returns the deployment's state manager.
func (d *Deployment) State() *state.Manager {
	return d.state
}

// Metrics returns the metrics collector shared by every run.
func (d *Deployment) Metrics() *telemetry.Metrics {
	return d.metrics
}

// Apply converges the deployment: apply, configure, verify, in that order.
// The returned result is populated even when a phase fails partway, so
// callers can render what did happen.
func (d *Deployment) Apply(ctx context.Context) (*provisioning.Result, error) {
	pctx, err := d.newContext(ctx)
	if err != nil {
		return nil, err
	}
	err = provisioning.RunPhases(pctx, []provisioning.Phase{
		d.applyProvisioner,
		d.configureProvisioner,
		d.verifyProvisioner,
	})
	pctx.Result.Finish()
	return pctx.Result, err
}

// Verify probes the deployed workloads without touching anything.
func (d *Deployment) Verify(ctx context.Context) (*provisioning.Result, error) {
	pctx, err := d.newContext(ctx)
	if err != nil {
		return nil, err
	}
	err = provisioning.RunPhases(pctx, []provisioning.Phase{d.verifyProvisioner})
	pctx.Result.Finish()
	return pctx.Result, err
}

// Harden revokes permissive bootstrap settings. It refuses to run while
// any planned role binding is unconfirmed.
func (d *Deployment) Harden(ctx context.Context) (*provisioning.Result, error) {
	pctx, err := d.newContext(ctx)
	if err != nil {
		return nil, err
	}
	err = d.configureProvisioner.Harden(pctx)
	pctx.Result.Finish()
	return pctx.Result, err
}

// Destroy tears the deployment down in reverse dependency order.
func (d *Deployment) Destroy(ctx context.Context) (*provisioning.Result, error) {
	pctx, err := d.newContext(ctx)
	if err != nil {
		return nil, err
	}
	err = provisioning.RunPhases(pctx, []provisioning.Phase{d.destroyProvisioner})
	pctx.Result.Finish()
	return pctx.Result, err
}

// newContext loads tracked state from disk and assembles the shared phase
// context around it.
func (d *Deployment) newContext(ctx context.Context) (*provisioning.Context, error) {
	if err := d.state.Load(); err != nil {
		return nil, &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "state-load", Err: err}
	}

	pctx := provisioning.NewContext(ctx, d.config, d.plan, d.state, d.logger)
	pctx.Engine = d.engine
	pctx.Provider = d.provider
	pctx.Resolver = reconcile.NewReconciler(d.provider, pctx.Timeouts, d.logger, d.metrics)
	pctx.Waiter = grants.NewWaiter(d.provider, pctx.Timeouts, d.logger, d.metrics)
	pctx.Metrics = d.metrics

	timeouts := pctx.Timeouts
	logger := d.logger
	pctx.ProberFor = func(endpoint string) provisioning.WorkloadProber {
		return probe.NewProber(endpoint, timeouts, logger)
	}
	return pctx, nil
}
