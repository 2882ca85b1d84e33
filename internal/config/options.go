package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/lockstepd/lockstep/internal/plan"
)

// The opaque per-resource config map passes through to the engine
// untouched; the orchestrator's own steps read it through the typed views
// below. Unknown keys are deliberately tolerated here.

// BindingOptions is the typed view of a role-binding resource's config.
type BindingOptions struct {
	// Role is the provider role name granted by the binding.
	Role string `mapstructure:"role"`

	// PrincipalFrom names the resource whose principal output becomes the
	// binding's principal.
	PrincipalFrom string `mapstructure:"principal_from"`

	// ScopeFrom names the resource whose identifier becomes the binding's
	// scope.
	ScopeFrom string `mapstructure:"scope_from"`
}

// WorkloadOptions is the typed view of a workload resource's config.
type WorkloadOptions struct {
	// EndpointOutput names the declared output carrying the workload's
	// base URL. Defaults to "endpoint".
	EndpointOutput string `mapstructure:"endpoint_output"`

	// MountFrom names the storage resource the workload mounts through
	// identity-based auth.
	MountFrom string `mapstructure:"mount_from"`
}

// StorageOptions is the typed view of a storage resource's config.
type StorageOptions struct {
	PermissiveAuth bool `mapstructure:"permissive_auth"`
}

// BindingOptionsFrom decodes a role-binding spec's config map.
func BindingOptionsFrom(spec plan.ResourceSpec) (BindingOptions, error) {
	var opts BindingOptions
	if err := mapstructure.Decode(spec.Config, &opts); err != nil {
		return BindingOptions{}, fmt.Errorf("decoding role-binding config: %w", err)
	}
	return opts, nil
}

// WorkloadOptionsFrom decodes a workload spec's config map.
func WorkloadOptionsFrom(spec plan.ResourceSpec) (WorkloadOptions, error) {
	var opts WorkloadOptions
	if err := mapstructure.Decode(spec.Config, &opts); err != nil {
		return WorkloadOptions{}, fmt.Errorf("decoding workload config: %w", err)
	}
	if opts.EndpointOutput == "" {
		opts.EndpointOutput = "endpoint"
	}
	return opts, nil
}

// StorageOptionsFrom decodes a storage spec's config map.
func StorageOptionsFrom(spec plan.ResourceSpec) (StorageOptions, error) {
	var opts StorageOptions
	if err := mapstructure.Decode(spec.Config, &opts); err != nil {
		return StorageOptions{}, fmt.Errorf("decoding storage config: %w", err)
	}
	return opts, nil
}

// PermissiveSettings lists the config keys of a spec that enable
// permissive bootstrap behavior and are currently true. These are the
// settings the hardening phase flips off.
func PermissiveSettings(spec plan.ResourceSpec) []string {
	var keys []string
	for key, value := range spec.Config {
		if !strings.HasPrefix(key, "permissive_") {
			continue
		}
		if enabled, ok := value.(bool); ok && enabled {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
