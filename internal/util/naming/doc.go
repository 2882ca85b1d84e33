// Package naming provides deterministic naming functions for provider
// resources.
//
// Names follow the pattern {project}-{env}-{logical}. Determinism is a
// correctness requirement, not a convention: the reconciler finds partially
// created resources by querying for the exact name, and retried creates
// must collide with their own earlier attempt instead of duplicating it.
package naming
