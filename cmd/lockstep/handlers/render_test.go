package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lockstepd/lockstep/internal/probe"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/state"
)

func sampleResult() *provisioning.Result {
	result := provisioning.NewResult("run-1", "acme", "dev")
	result.AddResource(provisioning.ResourceOutcome{Name: "storage", Kind: "storage", ID: "st-1", Action: provisioning.ActionCreated})
	result.AddResource(provisioning.ResourceOutcome{Name: "identity", Kind: "identity", ID: "id-1", Action: provisioning.ActionUnchanged})
	result.SetProbe(probe.Report{
		Endpoint: "http://workload.example.test",
		Checks: []probe.Check{
			{Name: probe.CheckHealth, Passed: true, Duration: 12 * time.Millisecond},
			{Name: probe.CheckStorage, Passed: true, Duration: 40 * time.Millisecond},
		},
	})
	result.Finish()
	return result
}

func TestRenderRunReport(t *testing.T) {
	out := renderRunReport("apply", sampleResult())

	assert.Contains(t, out, "lockstep apply: acme/dev")
	assert.Contains(t, out, "storage")
	assert.Contains(t, out, "st-1")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "unchanged")
	assert.Contains(t, out, "PASS health")
	assert.Contains(t, out, "1 created, 1 unchanged")
}

func TestRenderRunReport_FailureAndNote(t *testing.T) {
	result := provisioning.NewResult("run-2", "acme", "dev")
	result.AddResource(provisioning.ResourceOutcome{
		Name: "binding", Kind: "role-binding", Action: provisioning.ActionFailed,
		Detail: "propagation timed out",
	})
	result.SetHardening(false, "hardening deferred, run 'lockstep harden' once ready")
	result.Finish()

	out := renderRunReport("apply", result)

	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "propagation timed out")
	assert.Contains(t, out, "lockstep harden")
}

func TestRenderPlan(t *testing.T) {
	entries := []planEntry{
		{Name: "storage", Kind: "storage", ProviderName: "acme-dev-storage", Wave: 1},
		{Name: "identity", Kind: "identity", ProviderName: "acme-dev-identity", Wave: 1},
		{Name: "binding", Kind: "role-binding", ProviderName: "acme-dev-binding", Wave: 2, DependsOn: []string{"storage", "identity"}},
	}

	out := renderPlan("acme", "dev", 2, entries)

	assert.Contains(t, out, "lockstep plan: acme/dev")
	assert.Contains(t, out, "Wave 1")
	assert.Contains(t, out, "Wave 2")
	assert.Contains(t, out, "acme-dev-binding")
	assert.Contains(t, out, "(after: storage, identity)")
	assert.Contains(t, out, "3 resources")
	assert.Equal(t, 1, strings.Count(out, "Wave 2"), "each wave renders one header")
}

func TestRenderStatus(t *testing.T) {
	doc := state.Document{
		Project:     "acme",
		Environment: "dev",
		Serial:      7,
		RunID:       "run-9",
		UpdatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Resources: map[string]state.Record{
			"storage": {Kind: "storage", ID: "st-1", Outcome: state.OutcomeSucceeded, Hardened: true},
			"binding": {Kind: "role-binding", ID: "bnd-1", Outcome: state.OutcomeSucceeded, Effective: false},
		},
	}

	out := renderStatus(&doc)

	assert.Contains(t, out, "lockstep status: acme/dev")
	assert.Contains(t, out, "st-1")
	assert.Contains(t, out, "bnd-1")
	assert.Contains(t, out, "serial 7")
	assert.Contains(t, out, "run-9")
}

func TestRenderStatus_Empty(t *testing.T) {
	doc := state.Document{Project: "acme", Environment: "dev"}

	out := renderStatus(&doc)

	assert.Contains(t, out, "nothing tracked")
}
