package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/orchestration"
	"github.com/lockstepd/lockstep/internal/platform/s3"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/telemetry"
	"github.com/lockstepd/lockstep/internal/util/naming"
	"github.com/lockstepd/lockstep/internal/util/prerequisites"
)

// DefaultConfigPath is where commands look for the deployment configuration
// when --config is not given.
const DefaultConfigPath = "lockstep.yaml"

// RunOptions carries the flag values shared by the deployment commands.
type RunOptions struct {
	// ConfigPath locates the deployment configuration file.
	ConfigPath string

	// Environment, when set, overrides the environment declared in the
	// configuration file.
	Environment string

	// Retries, when positive, overrides retry.max_attempts.
	Retries int

	// JSON switches reports from styled text to machine-readable JSON.
	JSON bool
}

// snapshotStore is the slice of the object-storage client the handlers use
// for state snapshots.
type snapshotStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	EnsureBucket(ctx context.Context) error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile reads and validates the configuration file.
	loadConfigFile = config.LoadFile

	// newDeployment builds the deployment facade from configuration.
	newDeployment = orchestration.FromConfig

	// newSnapshotStore builds the object-storage client for state snapshots.
	// Credentials come from the environment, never the config file.
	newSnapshotStore = func(snap *config.SnapshotConfig) (snapshotStore, error) {
		return s3.NewClient(snap.Endpoint, snap.Region, snap.Bucket,
			os.Getenv("LOCKSTEP_SNAPSHOT_ACCESS_KEY"),
			os.Getenv("LOCKSTEP_SNAPSHOT_SECRET_KEY"))
	}

	// checkTools verifies external binaries are installed before a run
	// shells out to them.
	checkTools = func(tools []prerequisites.Tool) error {
		return prerequisites.Check(tools).Error()
	}

	// writeFile writes a file to disk.
	writeFile = os.WriteFile

	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
)

// loadConfig reads the configuration file and applies flag overrides. The
// overrides land before anything derives names or budgets from the config,
// so an --env run behaves exactly like a config file declaring that
// environment.
func loadConfig(opts RunOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if opts.Environment != "" {
		cfg.Environment = opts.Environment
	}
	if opts.Retries > 0 {
		cfg.Retry.MaxAttempts = opts.Retries
	}
	if opts.Environment != "" || opts.Retries > 0 {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration invalid after flag overrides: %w", err)
		}
	}

	return cfg, nil
}

// newLogger builds the process logger from the telemetry config.
func newLogger(cfg *config.Config) zerolog.Logger {
	return telemetry.NewLogger(telemetry.LogOptions{
		Level:  cfg.Telemetry.Level,
		Format: cfg.Telemetry.Format,
	})
}

// prepareDeployment builds the deployment facade and wires optional state
// snapshots. The returned store is nil when snapshots are not configured.
func prepareDeployment(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*orchestration.Deployment, snapshotStore, error) {
	dep, err := newDeployment(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.State.Snapshot == nil {
		return dep, nil, nil
	}

	store, err := newSnapshotStore(cfg.State.Snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build snapshot store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, nil, err
	}
	if err := restoreStateSnapshot(ctx, cfg, store, logger); err != nil {
		return nil, nil, err
	}
	dep.State().SetSnapshotter(store)

	return dep, store, nil
}

// restoreStateSnapshot downloads the last uploaded state document when no
// local state file exists. A present local file always wins: it is the
// single writer's copy and may be ahead of the snapshot.
func restoreStateSnapshot(ctx context.Context, cfg *config.Config, store snapshotStore, logger zerolog.Logger) error {
	if _, err := os.Stat(cfg.State.Path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat state file: %w", err)
	}

	key := naming.SnapshotKey(cfg.Project, cfg.Environment)
	data, err := store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download state snapshot: %w", err)
	}
	if data == nil {
		return nil
	}

	logger.Info().Str("key", key).Str("path", cfg.State.Path).Msg("restoring state from snapshot")
	return writeFile(cfg.State.Path, data, 0o600)
}

// flushMetrics records the run duration and, when configured, writes the
// Prometheus textfile snapshot. Metrics failures never change the command's
// outcome.
func flushMetrics(cfg *config.Config, dep *orchestration.Deployment, command string, start time.Time, logger zerolog.Logger) {
	dep.Metrics().ObserveRunDuration(command, time.Since(start))
	if cfg.Telemetry.MetricsFile == "" {
		return
	}
	if err := dep.Metrics().WriteFile(cfg.Telemetry.MetricsFile); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Telemetry.MetricsFile).Msg("failed to write metrics file")
	}
}

// printReport renders a run report to stdout. JSON mode emits the raw
// result document for scripting; otherwise a styled summary.
func printReport(command string, result *provisioning.Result, jsonOutput bool) error {
	if result == nil {
		return nil
	}
	if jsonOutput {
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Print(renderRunReport(command, result))
	return nil
}
