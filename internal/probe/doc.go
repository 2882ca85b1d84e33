// Package probe verifies a deployed workload after hardening. It calls the
// workload's health surface and pushes one write/read round trip through
// the storage endpoints, using the same authenticated path the workload
// itself uses. The probe is informational: it reports, it never rolls
// anything back.
package probe
