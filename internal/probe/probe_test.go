package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstepd/lockstep/internal/config"
)

// fakeWorkload emulates the deployed file-writer workload over an
// in-memory volume.
type fakeWorkload struct {
	mu        sync.Mutex
	files     map[string]string
	unhealthy bool
	corrupt   bool
	failWrite bool
}

func newFakeWorkload() *fakeWorkload {
	return &fakeWorkload{files: map[string]string{}}
}

func (f *fakeWorkload) file(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[name]
	return content, ok
}

func (f *fakeWorkload) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		unhealthy := f.unhealthy
		f.mu.Unlock()
		if unhealthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":            "healthy",
			"volume_accessible": true,
			"volume_writable":   true,
		})
	})
	mux.HandleFunc("POST /write-file", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failWrite {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			Content  string `json:"content"`
			Filename string `json:"filename"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.HasSuffix(req.Filename, ".txt") {
			req.Filename += ".txt"
		}
		f.files[req.Filename] = req.Content
		json.NewEncoder(w).Encode(map[string]string{"filename": req.Filename})
	})
	mux.HandleFunc("GET /read-file/{filename}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("filename")
		content, ok := f.files[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if f.corrupt {
			content = "garbled"
		}
		json.NewEncoder(w).Encode(map[string]string{"filename": name, "content": content})
	})
	mux.HandleFunc("GET /list-files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		files := make([]map[string]string, 0, len(f.files))
		for name := range f.files {
			files = append(files, map[string]string{"filename": name})
		}
		json.NewEncoder(w).Encode(map[string]any{"files": files, "count": len(files)})
	})
	return mux
}

func proberFor(t *testing.T, endpoint string) *Prober {
	t.Helper()
	return NewProber(endpoint, config.Timeouts{Probe: 5 * time.Second}, zerolog.Nop())
}

func checkByName(t *testing.T, report Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("report has no check named %q", name)
	return Check{}
}

func TestRun_AllChecksPass(t *testing.T) {
	workload := newFakeWorkload()
	server := httptest.NewServer(workload.handler())
	defer server.Close()

	report := proberFor(t, server.URL).Run(context.Background())

	require.Len(t, report.Checks, 3)
	assert.True(t, report.Passed(), "report: %+v", report)
	assert.Empty(t, report.FailedChecks())

	health := checkByName(t, report, CheckHealth)
	assert.Contains(t, health.Detail, "writable=true")

	storage := checkByName(t, report, CheckStorage)
	assert.Contains(t, storage.Detail, probeFilename)

	content, ok := workload.file(probeFilename)
	require.True(t, ok, "probe should have written its marker file")
	assert.Contains(t, content, "lockstep probe")
}

func TestRun_UnhealthyWorkloadFailsOnlyHealth(t *testing.T) {
	workload := newFakeWorkload()
	workload.unhealthy = true
	server := httptest.NewServer(workload.handler())
	defer server.Close()

	report := proberFor(t, server.URL).Run(context.Background())

	assert.False(t, report.Passed())
	health := checkByName(t, report, CheckHealth)
	assert.False(t, health.Passed)
	assert.Contains(t, health.Detail, "status 500")

	// Remaining checks still run; the report is complete even on failure.
	storage := checkByName(t, report, CheckStorage)
	assert.True(t, storage.Passed)
}

func TestRun_ReadBackMismatchFailsStorage(t *testing.T) {
	workload := newFakeWorkload()
	workload.corrupt = true
	server := httptest.NewServer(workload.handler())
	defer server.Close()

	report := proberFor(t, server.URL).Run(context.Background())

	assert.False(t, report.Passed())
	storage := checkByName(t, report, CheckStorage)
	assert.False(t, storage.Passed)
	assert.Contains(t, storage.Detail, "content mismatch")
}

func TestRun_WriteRejectedFailsStorage(t *testing.T) {
	workload := newFakeWorkload()
	workload.failWrite = true
	server := httptest.NewServer(workload.handler())
	defer server.Close()

	report := proberFor(t, server.URL).Run(context.Background())

	storage := checkByName(t, report, CheckStorage)
	assert.False(t, storage.Passed)
	assert.Contains(t, storage.Detail, "write:")

	inventory := checkByName(t, report, CheckInventory)
	assert.False(t, inventory.Passed, "marker file never landed, listing cannot contain it")
}

func TestRun_SlowWorkloadHitsCheckDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	prober := NewProber(server.URL, config.Timeouts{Probe: 30 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	report := prober.Run(context.Background())

	assert.False(t, report.Passed())
	assert.Less(t, time.Since(start), 3*time.Second, "per-check deadlines should bound the run")
	for _, check := range report.Checks {
		assert.False(t, check.Passed, "check %s", check.Name)
	}
}

func TestRun_UnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	report := proberFor(t, endpoint).Run(context.Background())

	assert.False(t, report.Passed())
	assert.Len(t, report.FailedChecks(), 3)
}

func TestReport_Passed(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   bool
	}{
		{
			name: "empty report never passes",
			want: false,
		},
		{
			name:   "all passed",
			checks: []Check{{Name: CheckHealth, Passed: true}, {Name: CheckStorage, Passed: true}},
			want:   true,
		},
		{
			name:   "one failure",
			checks: []Check{{Name: CheckHealth, Passed: true}, {Name: CheckStorage, Passed: false}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Report{Checks: tt.checks}
			assert.Equal(t, tt.want, report.Passed())
		})
	}
}

func TestCheck_String(t *testing.T) {
	pass := Check{Name: CheckHealth, Passed: true, Duration: 12 * time.Millisecond, Detail: "volume accessible=true writable=true"}
	assert.Contains(t, pass.String(), "PASS health")

	fail := Check{Name: CheckStorage, Passed: false, Duration: time.Second, Detail: "write: boom"}
	assert.Contains(t, fail.String(), "FAIL storage-round-trip")
	assert.Contains(t, fail.String(), "write: boom")
}
