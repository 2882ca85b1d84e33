// Package telemetry provides the structured logger and the Prometheus
// metrics shared by lockstep commands. Metrics live in a private registry
// and are exported once per run as a textfile snapshot.
package telemetry
