package naming

import "fmt"

// Naming functions for provider-facing resources.
// Names are derived from the plan rather than randomly suffixed so that a
// failed apply can be reconciled by querying the provider for the exact
// name, and so that re-running a create is an "already exists" no-op.

func Resource(project, env, logical string) string {
	return fmt.Sprintf("%s-%s-%s", project, env, logical)
}

func Binding(project, env, principal, role string) string {
	return fmt.Sprintf("%s-%s-%s-%s", project, env, principal, role)
}

func SnapshotKey(project, env string) string {
	return fmt.Sprintf("lockstep/%s/%s/state.json", project, env)
}

func MetricsJob(project, env string) string {
	return fmt.Sprintf("lockstep_%s_%s", project, env)
}
