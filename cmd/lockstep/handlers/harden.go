package handlers

import (
	"context"
	"time"

	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/util/prerequisites"
)

// Harden handles the harden command.
//
// Hardening mutates resources through the provider CLI only; the engine
// never runs. The orchestrator refuses to revoke a permissive setting
// while the binding replacing it is unconfirmed, so running this too early
// fails cleanly instead of cutting off the workload.
func Harden(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	tools := prerequisites.ForHardening(cfg.Provider.Command)
	if err := checkTools(tools); err != nil {
		return &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "prerequisites", Err: err}
	}

	logger := newLogger(cfg)
	dep, _, err := prepareDeployment(ctx, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := dep.Harden(ctx)
	flushMetrics(cfg, dep, "harden", start, logger)

	if printErr := printReport("harden", result, opts.JSON); printErr != nil && runErr == nil {
		runErr = printErr
	}
	return runErr
}
