// Package orchestration provides high-level workflow coordination for a
// deployment.
//
// This package assembles the provisioning pipeline by delegating to the
// specialized phases in the internal/provisioning subpackages. It defines
// the execution order and wires the shared context; the actual work lives
// in the phases.
//
// # Workflow
//
// Deployment.Apply executes the following phases in order:
//  1. Apply - converge every planned resource through the engine
//  2. Configure - role bindings, propagation waits, mounts, hardening
//  3. Verify - probe the deployed workloads
//
// Verify and Harden run single phases; Destroy walks the plan in reverse.
//
// # Usage
//
// The Deployment is the main entry point:
//
//	deployment, err := orchestration.FromConfig(cfg, logger)
//	result, err := deployment.Apply(ctx)
//
// Apply is idempotent - it can be run multiple times and will only make
// the changes necessary to reach the declared state.
package orchestration
