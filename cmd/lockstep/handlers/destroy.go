package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/util/naming"
	"github.com/lockstepd/lockstep/internal/util/prerequisites"
)

// Destroy handles the destroy command.
//
// It tears down every tracked resource in reverse dependency order and
// prunes state as the provider confirms each one gone. After a complete
// teardown the remote state snapshot is deleted too; snapshot cleanup
// failures are logged but never fail the destroy, since the resources are
// already gone.
func Destroy(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	tools := prerequisites.ForDeployment(cfg.Engine.Command, cfg.Provider.Command)
	if err := checkTools(tools); err != nil {
		return &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "prerequisites", Err: err}
	}

	logger := newLogger(cfg)
	dep, store, err := prepareDeployment(ctx, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := dep.Destroy(ctx)
	flushMetrics(cfg, dep, "destroy", start, logger)

	if runErr == nil && store != nil {
		cleanupSnapshot(ctx, cfg, store, logger)
	}

	if printErr := printReport("destroy", result, opts.JSON); printErr != nil && runErr == nil {
		runErr = printErr
	}
	return runErr
}

// cleanupSnapshot removes the remote state snapshot after a complete
// teardown.
func cleanupSnapshot(ctx context.Context, cfg *config.Config, store snapshotStore, logger zerolog.Logger) {
	key := naming.SnapshotKey(cfg.Project, cfg.Environment)
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to delete state snapshot")
	}
}
