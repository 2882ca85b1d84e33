// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - DeploymentFixture: An in-memory engine and control plane for pipeline scenarios
//   - MockPhase: Shared mock for pipeline phase wiring tests
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithProject("acme").
//	    WithEnvironment("dev").
//	    Build()
//
//	fixture := testing.NewDeploymentFixture()
//	pctx := testing.PipelineContext(t, cfg, fixture)
package testing
