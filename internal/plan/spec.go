// Package plan turns unordered resource specifications into a
// dependency-ordered, deterministic deployment plan.
package plan

// Resource kinds the configurator and probe know how to wire. The engine
// treats kinds as opaque; only post-provisioning logic switches on them.
const (
	KindStorage  = "storage"
	KindIdentity = "identity"
	KindBinding  = "role-binding"
	KindWorkload = "workload"
)

// KnownKinds lists the kinds accepted by config validation.
func KnownKinds() []string {
	return []string{KindStorage, KindIdentity, KindBinding, KindWorkload}
}

// ResourceSpec describes one desired resource. Immutable once planned.
// Config is an opaque key/value map; keys ending in "_from" name another
// resource whose provisioned output fills the value at apply time.
type ResourceSpec struct {
	Name      string         `mapstructure:"name" json:"name" yaml:"name"`
	Kind      string         `mapstructure:"kind" json:"kind" yaml:"kind"`
	DependsOn []string       `mapstructure:"depends_on" json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Config    map[string]any `mapstructure:"config" json:"config,omitempty" yaml:"config,omitempty"`
}

// DependsOnName reports whether the spec declares a dependency on name.
func (s ResourceSpec) DependsOnName(name string) bool {
	for _, dep := range s.DependsOn {
		if dep == name {
			return true
		}
	}
	return false
}
