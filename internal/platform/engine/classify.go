package engine

import (
	"encoding/json"
	"strings"
)

// wireReport is the JSON document a well-behaved engine prints on stdout.
type wireReport struct {
	Status  string            `json:"status"`
	ID      string            `json:"id"`
	Outputs map[string]string `json:"outputs"`
	Error   string            `json:"error"`
}

// Status vocabularies across engine versions. Anything outside these sets
// classifies Unknown: an unrecognized status is exactly the ambiguity the
// reconciler exists to resolve.
var (
	succeededStatuses = map[string]bool{
		"succeeded": true,
		"success":   true,
		"ok":        true,
		"applied":   true,
	}
	failedStatuses = map[string]bool{
		"failed": true,
		"error":  true,
	}
)

// ambiguousSignatures match free-text engine output describing a
// long-running operation the engine stopped watching.
var ambiguousSignatures = []string{
	"still in progress",
	"operation pending",
	"did not complete",
	"did not finish",
	"timed out waiting",
	"deadline exceeded while waiting",
	"status unknown",
	"result unknown",
	"unable to confirm",
}

// transientSignatures match failures worth retrying.
var transientSignatures = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"service unavailable",
	"rate limit",
	"too many requests",
	"try again",
	"eof",
	"500",
	"502",
	"503",
	"429",
}

// parseReport interprets the engine's stdout, stderr, and exit status.
// Every input combination yields a Report; nothing escapes unclassified.
func parseReport(stdout, stderr []byte, runErr error) *Report {
	var wire wireReport
	if err := json.Unmarshal(stdout, &wire); err == nil && wire.Status != "" {
		return classifyWire(wire)
	}

	// No parseable report; fall back to signatures over everything the
	// engine said.
	combined := strings.ToLower(string(stdout) + "\n" + string(stderr))

	if runErr == nil {
		return &Report{Outcome: OutcomeSucceeded}
	}
	if matchesAny(combined, ambiguousSignatures) {
		return &Report{
			Outcome: OutcomeUnknown,
			Message: firstLine(stdout, stderr),
		}
	}
	return &Report{
		Outcome:   OutcomeFailed,
		Message:   firstLine(stdout, stderr),
		Transient: matchesAny(combined, transientSignatures),
	}
}

func classifyWire(wire wireReport) *Report {
	status := strings.ToLower(strings.TrimSpace(wire.Status))
	switch {
	case succeededStatuses[status]:
		return &Report{
			Outcome: OutcomeSucceeded,
			ID:      wire.ID,
			Outputs: wire.Outputs,
		}
	case failedStatuses[status]:
		return &Report{
			Outcome:   OutcomeFailed,
			Message:   wire.Error,
			Transient: matchesAny(strings.ToLower(wire.Error), transientSignatures),
		}
	default:
		// Includes "pending", "in-progress", "unknown", "timeout", and
		// whatever else future engine versions invent.
		message := wire.Error
		if message == "" {
			message = "engine reported status " + wire.Status
		}
		return &Report{
			Outcome: OutcomeUnknown,
			ID:      wire.ID,
			Outputs: wire.Outputs,
			Message: message,
		}
	}
}

func matchesAny(s string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

// firstLine condenses raw engine output into a single-line message.
func firstLine(stdout, stderr []byte) string {
	for _, chunk := range [][]byte{stderr, stdout} {
		text := strings.TrimSpace(string(chunk))
		if text == "" {
			continue
		}
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		return text
	}
	return "engine produced no output"
}
