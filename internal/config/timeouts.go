package config

import (
	"os"
	"time"
)

// Timeouts holds all configurable polling and timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Propagation  time.Duration // Budget for a role binding to become effective
	PollInterval time.Duration // Interval between provider visibility polls
	Reconcile    time.Duration // Window for resolving an ambiguous apply
	Engine       time.Duration // Timeout for one engine invocation
	Provider     time.Duration // Timeout for one provider CLI invocation
	Probe        time.Duration // Timeout per verification check
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - LOCKSTEP_TIMEOUT_PROPAGATION (default: 4m)
//   - LOCKSTEP_POLL_INTERVAL (default: 5s)
//   - LOCKSTEP_TIMEOUT_RECONCILE (default: 90s)
//   - LOCKSTEP_TIMEOUT_ENGINE (default: 10m)
//   - LOCKSTEP_TIMEOUT_PROVIDER (default: 2m)
//   - LOCKSTEP_TIMEOUT_PROBE (default: 60s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Propagation:  parseDuration("LOCKSTEP_TIMEOUT_PROPAGATION", 4*time.Minute),
		PollInterval: parseDuration("LOCKSTEP_POLL_INTERVAL", 5*time.Second),
		Reconcile:    parseDuration("LOCKSTEP_TIMEOUT_RECONCILE", 90*time.Second),
		Engine:       parseDuration("LOCKSTEP_TIMEOUT_ENGINE", 10*time.Minute),
		Provider:     parseDuration("LOCKSTEP_TIMEOUT_PROVIDER", 2*time.Minute),
		Probe:        parseDuration("LOCKSTEP_TIMEOUT_PROBE", 60*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
