package provisioning

import (
	"sort"
	"sync"
	"time"

	"github.com/lockstepd/lockstep/internal/probe"
)

// Action describes what one pipeline run did to a resource.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUnchanged Action = "unchanged"
	ActionImported  Action = "imported"
	ActionFailed    Action = "failed"
	ActionDestroyed Action = "destroyed"
)

// ResourceOutcome is the per-resource line of a run report.
type ResourceOutcome struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
	Action Action `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// Result accumulates the report of one pipeline run. Workers applying
// independent resources append concurrently, so mutation goes through
// methods and readers receive copies.
type Result struct {
	mu sync.Mutex

	RunID       string    `json:"run_id"`
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	Resources []ResourceOutcome `json:"resources,omitempty"`
	Probe     *probe.Report     `json:"probe,omitempty"`

	HardeningApplied bool   `json:"hardening_applied"`
	HardeningNote    string `json:"hardening_note,omitempty"`
}

// NewResult creates an empty run report.
func NewResult(runID, project, environment string) *Result {
	return &Result{
		RunID:       runID,
		Project:     project,
		Environment: environment,
		StartedAt:   time.Now().UTC(),
	}
}

// AddResource appends one resource outcome.
func (r *Result) AddResource(outcome ResourceOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resources = append(r.Resources, outcome)
}

// SetProbe records the verification report.
func (r *Result) SetProbe(report probe.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Probe = &report
}

// SetHardening records whether hardening ran, with a note when it did not.
func (r *Result) SetHardening(applied bool, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.HardeningApplied = applied
	r.HardeningNote = note
}

// Finish stamps the end of the run and sorts resource outcomes by name so
// reports are stable regardless of worker scheduling.
func (r *Result) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	sort.Slice(r.Resources, func(i, j int) bool {
		return r.Resources[i].Name < r.Resources[j].Name
	})
}

// Outcomes returns a copy of the per-resource outcomes.
func (r *Result) Outcomes() []ResourceOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcomes := make([]ResourceOutcome, len(r.Resources))
	copy(outcomes, r.Resources)
	return outcomes
}

// CreatedCount reports how many resources this run newly created. A repeat
// run over an unchanged deployment reports zero.
func (r *Result) CreatedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, outcome := range r.Resources {
		if outcome.Action == ActionCreated || outcome.Action == ActionImported {
			count++
		}
	}
	return count
}

// FailedCount reports how many resources failed.
func (r *Result) FailedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, outcome := range r.Resources {
		if outcome.Action == ActionFailed {
			count++
		}
	}
	return count
}
