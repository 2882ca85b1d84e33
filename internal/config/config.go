package config

import (
	"time"

	"github.com/lockstepd/lockstep/internal/plan"
)

// Config holds one deployment's configuration as read from lockstep.yaml.
type Config struct {
	// Project and Environment form the deterministic name prefix of every
	// provisioned resource: <project>-<environment>-<logical>.
	Project     string `mapstructure:"project" yaml:"project"`
	Environment string `mapstructure:"environment" yaml:"environment"`

	// Parallelism bounds how many independent resources are applied at
	// once within one execution level.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`

	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Provider  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
	Hardening HardeningConfig `mapstructure:"hardening" yaml:"hardening"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`

	Resources []plan.ResourceSpec `mapstructure:"resources" yaml:"resources"`
}

// EngineConfig names the declarative apply engine binary.
type EngineConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
}

// ProviderConfig names the cloud control-plane CLI binary.
type ProviderConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
}

// HardeningConfig selects when permissive bootstrap settings are revoked.
type HardeningConfig struct {
	// Mode is "auto" (harden inside apply, once propagation is confirmed)
	// or "manual" (operator runs `lockstep harden`).
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// StateConfig locates the durable deployment state.
type StateConfig struct {
	Path     string          `mapstructure:"path" yaml:"path"`
	Snapshot *SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot,omitempty"`
}

// SnapshotConfig configures optional state snapshots to S3-compatible
// object storage after each successful save.
type SnapshotConfig struct {
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Region   string `mapstructure:"region" yaml:"region"`
}

// TelemetryConfig controls logging and metrics output.
type TelemetryConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// MetricsFile, when set, receives a Prometheus textfile snapshot of
	// the run's metrics.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// RetryConfig is the retry budget applied to engine and provider calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// HardenAutomatically reports whether apply should run the hardening phase
// itself after propagation is confirmed.
func (c *Config) HardenAutomatically() bool {
	return c.Hardening.Mode == HardeningModeAuto
}
