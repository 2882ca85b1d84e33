// Package reconcile resolves ambiguous apply outcomes. When the engine
// cannot say whether a resource was created, the reconciler polls the
// provider for the resource's deterministic name inside a bounded window
// and either imports what it finds or declares the apply failed. It only
// ever reads provider state.
package reconcile
