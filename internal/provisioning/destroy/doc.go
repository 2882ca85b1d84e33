// Package destroy tears down deployed resources in reverse dependency
// order, dependents before the resources they depend on.
//
// Teardown runs one resource at a time and trusts the provider, not the
// engine, as the source of truth: a state entry is pruned only after the
// provider confirms the resource is gone. An engine invocation that ends
// without a definite outcome leaves the entry in place for the next run.
package destroy
