package handlers

import (
	"context"
	"time"
)

// Verify handles the verify command.
//
// It probes the deployed workloads without mutating anything. No external
// binaries are required: the probe is plain HTTP against endpoints recorded
// in tracked state.
func Verify(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	dep, _, err := prepareDeployment(ctx, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := dep.Verify(ctx)
	flushMetrics(cfg, dep, "verify", start, logger)

	if printErr := printReport("verify", result, opts.JSON); printErr != nil && runErr == nil {
		runErr = printErr
	}
	return runErr
}
