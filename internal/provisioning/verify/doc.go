// Package verify probes deployed workloads to prove the deployment
// actually works: the health endpoint answers and a file written through
// the workload comes back intact from the mounted storage.
//
// Verification never mutates tracked state. A failing probe leaves the
// deployment exactly as apply recorded it and surfaces as a verification
// failure, so callers report "deployed but unverified" rather than
// pretending the resources are gone.
package verify
