// Package config loads, defaults, and validates the lockstep.yaml
// deployment configuration, and exposes the operational timeouts tuned
// through environment variables.
package config
