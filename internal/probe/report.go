package probe

import (
	"fmt"
	"time"
)

// Check names, in the order they run.
const (
	CheckHealth    = "health"
	CheckStorage   = "storage-round-trip"
	CheckInventory = "inventory"
)

// Check is the outcome of a single verification step.
type Check struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (c Check) String() string {
	status := "PASS"
	if !c.Passed {
		status = "FAIL"
	}
	if c.Detail == "" {
		return fmt.Sprintf("%s %s (%s)", status, c.Name, c.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s %s (%s): %s", status, c.Name, c.Duration.Round(time.Millisecond), c.Detail)
}

// Report collects every check of one probe run.
type Report struct {
	Endpoint  string    `json:"endpoint"`
	StartedAt time.Time `json:"started_at"`
	Checks    []Check   `json:"checks"`
}

// Passed reports whether every check passed. An empty report counts as
// failed so a probe that never ran cannot look green.
func (r Report) Passed() bool {
	if len(r.Checks) == 0 {
		return false
	}
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns the checks that did not pass.
func (r Report) FailedChecks() []Check {
	var failed []Check
	for _, check := range r.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}
