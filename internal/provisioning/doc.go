// Package provisioning provides shared types and interfaces for the
// deployment pipeline.
//
// The pipeline is organized into focused subpackages:
//   - apply/: dependency-ordered engine applies with retry and reconciliation
//   - configure/: role bindings, mount wiring, and two-phase hardening
//   - verify/: post-deployment workload verification
//   - destroy/: reverse-order teardown
//
// This root package contains the phase contract, the shared run context,
// the error taxonomy, and pipeline observability.
package provisioning
