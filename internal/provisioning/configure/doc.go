// Package configure implements the post-provisioning phase: ensuring
// role bindings exist, waiting for them to propagate, wiring workload
// mounts over identity-based auth, and revoking permissive bootstrap
// settings once propagation is confirmed. Hardening never runs ahead of
// confirmation; that ordering is the point of the phase.
package configure
