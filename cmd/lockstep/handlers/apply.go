package handlers

import (
	"context"
	"time"

	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/util/prerequisites"
)

// Apply handles the apply command.
//
// It loads the configuration, checks that the engine and provider binaries
// are installed, and converges the deployment: plan, apply, propagation
// confirmation, verification, and hardening when the mode allows. The run
// report is printed even when the run fails partway, so the operator sees
// which resources were touched before the abort.
func Apply(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	tools := prerequisites.ForDeployment(cfg.Engine.Command, cfg.Provider.Command)
	if err := checkTools(tools); err != nil {
		return &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "prerequisites", Err: err}
	}

	logger := newLogger(cfg)
	dep, _, err := prepareDeployment(ctx, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := dep.Apply(ctx)
	flushMetrics(cfg, dep, "apply", start, logger)

	if printErr := printReport("apply", result, opts.JSON); printErr != nil && runErr == nil {
		runErr = printErr
	}
	return runErr
}
