// Package grants waits for role bindings to propagate. Providers accept a
// binding write long before every enforcement point observes it, so the
// waiter polls the provider's read API until the exact
// (principal, role, scope) triple is visible, then reports it effective.
package grants
