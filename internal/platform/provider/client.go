// Package provider wraps the cloud control-plane CLI behind small query
// and mutation interfaces. All access goes through the configured binary;
// results are JSON on stdout, failures are classified from stderr.
package provider

import (
	"context"
)

// Resource is what the provider reports about one live resource.
type Resource struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Kind    string            `json:"kind"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// Binding is one role binding as reported by the provider.
type Binding struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
	Scope     string `json:"scope"`
}

// Reader is the read-only surface used by the reconciler and the
// propagation waiter. Implementations never mutate the provider.
type Reader interface {
	// GetResource looks a resource up by kind and deterministic name.
	// A resource that definitely does not exist returns (nil, nil).
	GetResource(ctx context.Context, kind, name string) (*Resource, error)

	// ListRoleBindings returns the bindings currently visible for an
	// exact principal and scope.
	ListRoleBindings(ctx context.Context, principal, scope string) ([]Binding, error)
}

// Mutator is the imperative surface used by post-provisioning
// configuration and destroy.
type Mutator interface {
	// CreateRoleBinding grants role to principal on scope. Creating a
	// binding that already exists returns an error satisfying
	// IsAlreadyExists; callers treat that as success.
	CreateRoleBinding(ctx context.Context, principal, role, scope string) error

	// UpdateResource patches named settings on a resource.
	UpdateResource(ctx context.Context, kind, name string, settings map[string]string) error

	// DeleteResource removes a resource. Deleting a resource that is
	// already gone succeeds.
	DeleteResource(ctx context.Context, kind, name string) error
}

// Client combines the full provider surface.
type Client interface {
	Reader
	Mutator
}
