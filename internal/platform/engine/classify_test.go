package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReport_WireStatuses(t *testing.T) {
	exit1 := errors.New("exit status 1")

	tests := []struct {
		name    string
		stdout  string
		stderr  string
		runErr  error
		want    Outcome
		wantMsg string
	}{
		{
			name:   "succeeded with outputs",
			stdout: `{"status": "succeeded", "id": "sto-1", "outputs": {"url": "https://sto-1"}}`,
			want:   OutcomeSucceeded,
		},
		{
			name:   "success alias",
			stdout: `{"status": "Success"}`,
			want:   OutcomeSucceeded,
		},
		{
			name:    "failed with error detail",
			stdout:  `{"status": "failed", "error": "invalid configuration: bad tier"}`,
			runErr:  exit1,
			want:    OutcomeFailed,
			wantMsg: "invalid configuration: bad tier",
		},
		{
			name:   "pending is ambiguous",
			stdout: `{"status": "pending", "id": "bnd-1"}`,
			runErr: exit1,
			want:   OutcomeUnknown,
		},
		{
			name:   "in-progress is ambiguous",
			stdout: `{"status": "in-progress"}`,
			want:   OutcomeUnknown,
		},
		{
			name:   "unrecognized status is ambiguous",
			stdout: `{"status": "converging-backwards"}`,
			want:   OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := parseReport([]byte(tt.stdout), []byte(tt.stderr), tt.runErr)
			assert.Equal(t, tt.want, report.Outcome)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, report.Message)
			}
		})
	}
}

func TestParseReport_SucceededCarriesIdentifiers(t *testing.T) {
	report := parseReport([]byte(`{"status": "succeeded", "id": "wrk-1", "outputs": {"endpoint": "https://wrk-1.example"}}`), nil, nil)

	assert.Equal(t, OutcomeSucceeded, report.Outcome)
	assert.Equal(t, "wrk-1", report.ID)
	assert.Equal(t, "https://wrk-1.example", report.Outputs["endpoint"])
}

func TestParseReport_UnknownKeepsPartialIdentifiers(t *testing.T) {
	// An ambiguous report may still name the operation's target; the
	// reconciler can use it.
	report := parseReport([]byte(`{"status": "pending", "id": "bnd-1"}`), nil, errors.New("exit status 1"))

	assert.Equal(t, OutcomeUnknown, report.Outcome)
	assert.Equal(t, "bnd-1", report.ID)
}

func TestParseReport_TransientClassification(t *testing.T) {
	transient := parseReport([]byte(`{"status": "failed", "error": "503 service unavailable"}`), nil, errors.New("exit status 1"))
	assert.Equal(t, OutcomeFailed, transient.Outcome)
	assert.True(t, transient.Transient)

	fatal := parseReport([]byte(`{"status": "failed", "error": "invalid tier: platinum"}`), nil, errors.New("exit status 1"))
	assert.Equal(t, OutcomeFailed, fatal.Outcome)
	assert.False(t, fatal.Transient)
}

func TestParseReport_NonJSONFallback(t *testing.T) {
	exit1 := errors.New("exit status 1")

	tests := []struct {
		name          string
		stdout        string
		stderr        string
		runErr        error
		want          Outcome
		wantTransient bool
	}{
		{
			name:   "clean exit without report",
			stdout: "applied 1 resource",
			want:   OutcomeSucceeded,
		},
		{
			name:   "ambiguous free text",
			stderr: "operation is still in progress, giving up on watching",
			runErr: exit1,
			want:   OutcomeUnknown,
		},
		{
			name:   "timed out waiting",
			stderr: "timed out waiting for operation op-123",
			runErr: exit1,
			want:   OutcomeUnknown,
		},
		{
			name:          "transient failure",
			stderr:        "connect: connection refused",
			runErr:        exit1,
			want:          OutcomeFailed,
			wantTransient: true,
		},
		{
			name:   "definite failure",
			stderr: "plan rejected: unknown kind",
			runErr: exit1,
			want:   OutcomeFailed,
		},
		{
			name:   "silent failure",
			runErr: exit1,
			want:   OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := parseReport([]byte(tt.stdout), []byte(tt.stderr), tt.runErr)
			assert.Equal(t, tt.want, report.Outcome)
			assert.Equal(t, tt.wantTransient, report.Transient)
			if tt.want != OutcomeSucceeded {
				assert.NotEmpty(t, report.Message, "failures and ambiguity always carry detail")
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "boom", firstLine(nil, []byte("boom\nstack trace line")))
	assert.Equal(t, "from stdout", firstLine([]byte("from stdout"), nil))
	assert.Equal(t, "stderr wins", firstLine([]byte("stdout text"), []byte("stderr wins")))
	assert.Equal(t, "engine produced no output", firstLine(nil, nil))
}
