package provisioning

import (
	"errors"
	"fmt"

	"github.com/lockstepd/lockstep/internal/grants"
)

// ErrorKind classifies a step failure. The kind, not the underlying error,
// decides whether the pipeline aborts, resumes, or degrades to a warning.
type ErrorKind string

const (
	// KindTransientProvider covers network blips, rate limiting, and
	// transient engine failures. Retried; aborts only once the retry
	// budget is exhausted.
	KindTransientProvider ErrorKind = "transient-provider-error"

	// KindPropagationTimeout means a role binding never became visible
	// within budget. Fatal for the current run but resumable: a re-run
	// re-polls from recorded state instead of recreating anything.
	KindPropagationTimeout ErrorKind = "propagation-timeout"

	// KindPartialSuccess means an apply reported failure but the resource
	// exists. Resolved by import and logged, never surfaced as an error.
	KindPartialSuccess ErrorKind = "partial-success-detected"

	// KindConfiguration covers invalid or contradictory resource specs.
	// Fatal, never retried.
	KindConfiguration ErrorKind = "configuration-error"

	// KindVerification means the post-deployment probe failed. The
	// deployment itself stands; the process exits with a warning code.
	KindVerification ErrorKind = "verification-failure"
)

// StepError ties a failure to the logical resource and pipeline step it
// happened in. Aborts surface exactly this triple to the operator, never a
// raw provider trace.
type StepError struct {
	Kind     ErrorKind
	Resource string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("step %s failed (%s): %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("resource %s: step %s failed (%s): %v", e.Resource, e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classified kind from err, looking through wrapping.
// Errors that never passed through a StepError still classify when their
// type is unambiguous.
func KindOf(err error) ErrorKind {
	var step *StepError
	if errors.As(err, &step) {
		return step.Kind
	}
	if grants.IsPropagationTimeout(err) {
		return KindPropagationTimeout
	}
	return ""
}
