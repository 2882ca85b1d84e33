package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lockstepd/lockstep/internal/plan"
)

// HardeningModeAuto and HardeningModeManual are the accepted hardening
// trigger policies.
const (
	HardeningModeAuto   = "auto"
	HardeningModeManual = "manual"
)

// ValidHardeningModes contains the accepted hardening.mode values.
var ValidHardeningModes = map[string]bool{
	HardeningModeAuto:   true,
	HardeningModeManual: true,
}

// ValidLogFormats contains the accepted telemetry.format values.
var ValidLogFormats = map[string]bool{
	"auto":    true,
	"console": true,
	"json":    true,
}

// validKinds is derived from the plan package so the two never drift.
var validKinds = func() map[string]bool {
	kinds := make(map[string]bool)
	for _, k := range plan.KnownKinds() {
		kinds[k] = true
	}
	return kinds
}()

// nameRegex constrains project, environment, and logical resource names to
// what survives inside a deterministic provider resource name.
var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Validate checks the configuration for common errors and returns a
// detailed error if validation fails.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}
	if !nameRegex.MatchString(c.Project) {
		return fmt.Errorf("invalid project %q: must match %s", c.Project, nameRegex)
	}
	if !nameRegex.MatchString(c.Environment) {
		return fmt.Errorf("invalid environment %q: must match %s", c.Environment, nameRegex)
	}
	if c.Engine.Command == "" {
		return fmt.Errorf("engine.command is required")
	}
	if c.Provider.Command == "" {
		return fmt.Errorf("provider.command is required")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}

	if !ValidHardeningModes[c.Hardening.Mode] {
		return fmt.Errorf("invalid hardening mode %q: must be one of %v",
			c.Hardening.Mode, getMapKeys(ValidHardeningModes))
	}
	if c.Telemetry.Format != "" && !ValidLogFormats[c.Telemetry.Format] {
		return fmt.Errorf("invalid telemetry format %q: must be one of %v",
			c.Telemetry.Format, getMapKeys(ValidLogFormats))
	}

	if err := c.validateRetry(); err != nil {
		return fmt.Errorf("retry validation failed: %w", err)
	}
	if err := c.validateState(); err != nil {
		return fmt.Errorf("state validation failed: %w", err)
	}
	if err := c.validateResources(); err != nil {
		return fmt.Errorf("resource validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", c.Retry.BaseDelay)
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("max_delay %v is below base_delay %v", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be at least 1.0, got %v", c.Retry.Multiplier)
	}
	return nil
}

func (c *Config) validateState() error {
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.State.Snapshot != nil && c.State.Snapshot.Bucket == "" {
		return fmt.Errorf("state.snapshot.bucket is required when snapshots are configured")
	}
	return nil
}

func (c *Config) validateResources() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}

	declared := make(map[string]bool, len(c.Resources))
	for i, spec := range c.Resources {
		if spec.Name == "" {
			return fmt.Errorf("resource %d: name is required", i)
		}
		if !nameRegex.MatchString(spec.Name) {
			return fmt.Errorf("resource %q: invalid name: must match %s", spec.Name, nameRegex)
		}
		if declared[spec.Name] {
			return fmt.Errorf("resource %q: duplicate name", spec.Name)
		}
		declared[spec.Name] = true

		if !validKinds[spec.Kind] {
			return fmt.Errorf("resource %q: invalid kind %q: must be one of %v",
				spec.Name, spec.Kind, getMapKeys(validKinds))
		}
	}

	for _, spec := range c.Resources {
		for _, dep := range spec.DependsOn {
			if !declared[dep] {
				return fmt.Errorf("resource %q: depends on undeclared resource %q", spec.Name, dep)
			}
		}
		if err := c.validateReferences(spec, declared); err != nil {
			return err
		}
		if spec.Kind == plan.KindBinding {
			if err := validateBindingSpec(spec); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateReferences checks that every "*_from" config value names a
// declared dependency of the same spec, so output substitution at apply
// time can never dangle.
func (c *Config) validateReferences(spec plan.ResourceSpec, declared map[string]bool) error {
	for key, value := range spec.Config {
		if !strings.HasSuffix(key, "_from") {
			continue
		}
		ref, ok := value.(string)
		if !ok || ref == "" {
			return fmt.Errorf("resource %q: %s must name a resource", spec.Name, key)
		}
		if !declared[ref] {
			return fmt.Errorf("resource %q: %s references undeclared resource %q", spec.Name, key, ref)
		}
		if !spec.DependsOnName(ref) {
			return fmt.Errorf("resource %q: %s references %q which is not in depends_on", spec.Name, key, ref)
		}
	}
	return nil
}

func validateBindingSpec(spec plan.ResourceSpec) error {
	opts, err := BindingOptionsFrom(spec)
	if err != nil {
		return fmt.Errorf("resource %q: %w", spec.Name, err)
	}
	if opts.Role == "" {
		return fmt.Errorf("resource %q: role is required for role-binding resources", spec.Name)
	}
	if opts.PrincipalFrom == "" {
		return fmt.Errorf("resource %q: principal_from is required for role-binding resources", spec.Name)
	}
	if opts.ScopeFrom == "" {
		return fmt.Errorf("resource %q: scope_from is required for role-binding resources", spec.Name)
	}
	return nil
}

// getMapKeys returns the keys of a map as a sorted slice for error messages.
func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyDefaults fills unset fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Parallelism == 0 {
		c.Parallelism = 2
	}
	if c.Hardening.Mode == "" {
		c.Hardening.Mode = HardeningModeAuto
	}
	if c.State.Path == "" {
		c.State.Path = ".lockstep/state.json"
	}
	if c.Telemetry.Level == "" {
		c.Telemetry.Level = "info"
	}
	if c.Telemetry.Format == "" {
		c.Telemetry.Format = "auto"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 1 * time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
}
