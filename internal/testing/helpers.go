package testing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/grants"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/reconcile"
	"github.com/lockstepd/lockstep/internal/state"
	"github.com/lockstepd/lockstep/internal/telemetry"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TempStateFile returns a state file path inside the test's temp dir.
func TempStateFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

// FastTimeouts returns polling budgets measured in milliseconds so
// timeout and exhaustion paths finish quickly under test.
func FastTimeouts() config.Timeouts {
	return config.Timeouts{
		Propagation:  250 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		Reconcile:    100 * time.Millisecond,
		Engine:       time.Second,
		Provider:     time.Second,
		Probe:        time.Second,
	}
}

// StateManager creates a loaded state manager over a fresh temp file.
func StateManager(t *testing.T, cfg *config.Config) *state.Manager {
	t.Helper()
	manager := state.NewManager(TempStateFile(t), cfg.Project, cfg.Environment)
	if err := manager.Load(); err != nil {
		t.Fatalf("loading empty state: %v", err)
	}
	return manager
}

// PipelineContext builds a pipeline context over a fresh temp state file,
// wired to the fixture's engine and provider and to fast test timeouts.
// The probe factory is left unset; verification tests provide their own.
func PipelineContext(t *testing.T, cfg *config.Config, fixture *DeploymentFixture) *provisioning.Context {
	t.Helper()
	return PipelineContextOver(t, cfg, fixture, StateManager(t, cfg))
}

// PipelineContextOver is PipelineContext over an existing state manager,
// for tests that run the pipeline repeatedly against the same state.
func PipelineContextOver(t *testing.T, cfg *config.Config, fixture *DeploymentFixture, manager *state.Manager) *provisioning.Context {
	t.Helper()
	deploymentPlan, err := plan.Build(cfg.Resources)
	if err != nil {
		t.Fatalf("building plan: %v", err)
	}

	pctx := provisioning.NewContext(TestContext(t), cfg, deploymentPlan, manager, zerolog.Nop())
	pctx.Timeouts = FastTimeouts()
	pctx.Metrics = telemetry.NewMetrics()
	pctx.Engine = fixture.Engine()
	pctx.Provider = fixture.Provider()
	pctx.Resolver = reconcile.NewReconciler(fixture.Provider(), pctx.Timeouts, zerolog.Nop(), pctx.Metrics)
	pctx.Waiter = grants.NewWaiter(fixture.Provider(), pctx.Timeouts, zerolog.Nop(), pctx.Metrics)
	return pctx
}
