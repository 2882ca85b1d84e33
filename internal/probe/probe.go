package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
)

// probeFilename is reused across runs so repeated probes overwrite one
// marker file instead of littering the volume.
const probeFilename = "lockstep-probe.txt"

type healthPayload struct {
	Status           string `json:"status"`
	VolumeAccessible bool   `json:"volume_accessible"`
	VolumeWritable   bool   `json:"volume_writable"`
}

type writeFileRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type writeFileResponse struct {
	Filename string `json:"filename"`
}

type readFileResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type listFilesResponse struct {
	Files []struct {
		Filename string `json:"filename"`
	} `json:"files"`
	Count int `json:"count"`
}

// Prober runs verification checks against one workload endpoint.
type Prober struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   zerolog.Logger
}

// NewProber creates a prober for the workload at endpoint. Each check gets
// its own deadline from the probe timeout in timeouts.
func NewProber(endpoint string, timeouts config.Timeouts, logger zerolog.Logger) *Prober {
	return &Prober{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeouts.Probe,
		client:   &http.Client{},
		logger:   logger,
	}
}

// Run executes every check and returns the collected report. Checks run in
// order but a failure never stops the rest; the operator gets the whole
// picture in one pass.
func (p *Prober) Run(ctx context.Context) Report {
	report := Report{Endpoint: p.endpoint, StartedAt: time.Now().UTC()}

	// Unique content per run so a marker file left by an earlier probe
	// cannot satisfy the read-back comparison.
	content := fmt.Sprintf("lockstep probe %s", report.StartedAt.Format(time.RFC3339Nano))

	report.Checks = append(report.Checks, p.checkHealth(ctx))
	report.Checks = append(report.Checks, p.checkStorageRoundTrip(ctx, content))
	report.Checks = append(report.Checks, p.checkInventory(ctx))

	for _, check := range report.Checks {
		event := p.logger.Info()
		if !check.Passed {
			event = p.logger.Warn()
		}
		event.Str("check", check.Name).
			Bool("passed", check.Passed).
			Dur("duration", check.Duration).
			Str("detail", check.Detail).
			Msg("verification check finished")
	}
	return report
}

func (p *Prober) checkHealth(ctx context.Context) (check Check) {
	check.Name = CheckHealth
	start := time.Now()
	defer func() { check.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	resp, err := p.client.Do(req)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.Detail = fmt.Sprintf("health endpoint returned status %d", resp.StatusCode)
		return check
	}

	var payload healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		check.Detail = fmt.Sprintf("decoding health response: %v", err)
		return check
	}
	if payload.Status != "healthy" {
		check.Detail = fmt.Sprintf("workload reports status %q", payload.Status)
		return check
	}

	check.Passed = true
	check.Detail = fmt.Sprintf("volume accessible=%t writable=%t", payload.VolumeAccessible, payload.VolumeWritable)
	return check
}

func (p *Prober) checkStorageRoundTrip(ctx context.Context, content string) (check Check) {
	check.Name = CheckStorage
	start := time.Now()
	defer func() { check.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	written, err := p.writeFile(ctx, content)
	if err != nil {
		check.Detail = fmt.Sprintf("write: %v", err)
		return check
	}

	readBack, err := p.readFile(ctx, written)
	if err != nil {
		check.Detail = fmt.Sprintf("read: %v", err)
		return check
	}
	if readBack != content {
		check.Detail = fmt.Sprintf("content mismatch: wrote %d bytes, read back %d", len(content), len(readBack))
		return check
	}

	check.Passed = true
	check.Detail = fmt.Sprintf("wrote and read back %s", written)
	return check
}

func (p *Prober) checkInventory(ctx context.Context) (check Check) {
	check.Name = CheckInventory
	start := time.Now()
	defer func() { check.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/list-files", nil)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	resp, err := p.client.Do(req)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.Detail = fmt.Sprintf("list endpoint returned status %d", resp.StatusCode)
		return check
	}

	var payload listFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		check.Detail = fmt.Sprintf("decoding list response: %v", err)
		return check
	}
	for _, file := range payload.Files {
		if file.Filename == probeFilename {
			check.Passed = true
			check.Detail = fmt.Sprintf("volume holds %d file(s) including the probe marker", payload.Count)
			return check
		}
	}

	check.Detail = fmt.Sprintf("probe marker %s not listed among %d file(s)", probeFilename, payload.Count)
	return check
}

func (p *Prober) writeFile(ctx context.Context, content string) (string, error) {
	body, err := json.Marshal(writeFileRequest{Content: content, Filename: probeFilename})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/write-file", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("write endpoint returned status %d", resp.StatusCode)
	}
	var payload writeFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding write response: %w", err)
	}
	if payload.Filename == "" {
		return "", fmt.Errorf("write response did not name the stored file")
	}
	return payload.Filename, nil
}

func (p *Prober) readFile(ctx context.Context, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/read-file/"+filename, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("read endpoint returned status %d", resp.StatusCode)
	}
	var payload readFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding read response: %w", err)
	}
	return payload.Content, nil
}
