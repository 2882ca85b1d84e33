package testing

import (
	"maps"
	"time"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/plan"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
// Retry delays are in the low milliseconds so exhaustion paths stay fast.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			Project:     "acme",
			Environment: "dev",
			Parallelism: 2,
			Engine:      config.EngineConfig{Command: "mock-engine"},
			Provider:    config.ProviderConfig{Command: "mock-provider"},
			Hardening:   config.HardeningConfig{Mode: config.HardeningModeAuto},
			State:       config.StateConfig{Path: "state.json"},
			Retry: config.RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   time.Millisecond,
				MaxDelay:    5 * time.Millisecond,
				Multiplier:  2.0,
			},
		},
	}
}

// WithProject sets the project name.
func (b *ConfigBuilder) WithProject(project string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Project = project
	return newBuilder
}

// WithEnvironment sets the environment name.
func (b *ConfigBuilder) WithEnvironment(environment string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Environment = environment
	return newBuilder
}

// WithParallelism bounds the apply worker pool.
func (b *ConfigBuilder) WithParallelism(n int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Parallelism = n
	return newBuilder
}

// WithHardeningMode sets the hardening trigger policy.
func (b *ConfigBuilder) WithHardeningMode(mode string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Hardening.Mode = mode
	return newBuilder
}

// WithStatePath points the state file somewhere else, usually a temp dir.
func (b *ConfigBuilder) WithStatePath(path string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.State.Path = path
	return newBuilder
}

// WithRetry sets the retry budget.
func (b *ConfigBuilder) WithRetry(retry config.RetryConfig) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Retry = retry
	return newBuilder
}

// WithMaxAttempts sets only the retry attempt bound.
func (b *ConfigBuilder) WithMaxAttempts(n int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Retry.MaxAttempts = n
	return newBuilder
}

// WithResource appends one resource spec.
func (b *ConfigBuilder) WithResource(spec plan.ResourceSpec) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Resources = append(newBuilder.cfg.Resources, cloneResourceSpec(spec))
	return newBuilder
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.cfg // copy
	return &cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	if len(b.cfg.Resources) > 0 {
		newCfg.Resources = make([]plan.ResourceSpec, len(b.cfg.Resources))
		for i, spec := range b.cfg.Resources {
			newCfg.Resources[i] = cloneResourceSpec(spec)
		}
	}
	return &ConfigBuilder{cfg: newCfg}
}

// cloneResourceSpec creates a deep copy of a ResourceSpec.
func cloneResourceSpec(spec plan.ResourceSpec) plan.ResourceSpec {
	cloned := spec
	if spec.DependsOn != nil {
		cloned.DependsOn = make([]string, len(spec.DependsOn))
		copy(cloned.DependsOn, spec.DependsOn)
	}
	if spec.Config != nil {
		cloned.Config = make(map[string]any, len(spec.Config))
		maps.Copy(cloned.Config, spec.Config)
	}
	return cloned
}

// StorageSpec returns a storage resource with permissive bootstrap auth.
func StorageSpec(name string) plan.ResourceSpec {
	return plan.ResourceSpec{
		Name: name,
		Kind: plan.KindStorage,
		Config: map[string]any{
			"permissive_auth": true,
		},
	}
}

// IdentitySpec returns a workload identity resource.
func IdentitySpec(name string) plan.ResourceSpec {
	return plan.ResourceSpec{
		Name: name,
		Kind: plan.KindIdentity,
	}
}

// BindingSpec returns a role binding granting role to the identity's
// principal on the storage's scope.
func BindingSpec(name, role, identity, storage string) plan.ResourceSpec {
	return plan.ResourceSpec{
		Name:      name,
		Kind:      plan.KindBinding,
		DependsOn: []string{storage, identity},
		Config: map[string]any{
			"role":           role,
			"principal_from": identity,
			"scope_from":     storage,
		},
	}
}

// WorkloadSpec returns a workload that mounts the storage and waits on the
// binding before it is applied.
func WorkloadSpec(name, binding, storage string) plan.ResourceSpec {
	return plan.ResourceSpec{
		Name:      name,
		Kind:      plan.KindWorkload,
		DependsOn: []string{binding, storage},
		Config: map[string]any{
			"mount_from": storage,
		},
	}
}

// MinimalConfig returns a one-resource config for simple tests.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().
		WithResource(StorageSpec("storage")).
		Build()
}

// SampleConfigBuilder returns a builder pre-loaded with the four-resource
// deployment used across pipeline tests: storage and identity feeding a
// role binding, and a workload that mounts the storage once the binding
// is in place.
func SampleConfigBuilder() *ConfigBuilder {
	return NewConfigBuilder().
		WithResource(StorageSpec("storage")).
		WithResource(IdentitySpec("identity")).
		WithResource(BindingSpec("binding", "object-writer", "identity", "storage")).
		WithResource(WorkloadSpec("workload", "binding", "storage"))
}

// SampleConfig returns the built form of SampleConfigBuilder.
func SampleConfig() *config.Config {
	return SampleConfigBuilder().Build()
}
