// Package apply implements the first pipeline phase: converging every
// planned resource through the declarative engine in dependency order.
// Transient engine failures are retried with backoff, definite failures
// are double-checked against the provider before they are believed, and
// ambiguous outcomes are handed to the reconciler rather than re-applied
// blind.
package apply
