// Package prerequisites verifies that the external CLIs the orchestrator
// shells out to are actually installed before a run mutates anything.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents an external binary a deployment run depends on.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string
}

// ForDeployment returns the tools an apply or destroy run shells out to.
// Both commands come from the environment config, so the caller resolves
// them before checking.
func ForDeployment(engineCommand, providerCommand string) []Tool {
	return []Tool{
		{
			Name:        engineCommand,
			Required:    true,
			Description: "declarative apply engine invoked for each planned resource",
		},
		{
			Name:        providerCommand,
			Required:    true,
			Description: "cloud control-plane CLI used for imperative fix-ups and queries",
		},
	}
}

// ForHardening returns the tools a harden run shells out to. Hardening
// mutates through the provider CLI only; the engine never runs.
func ForHardening(providerCommand string) []Tool {
	return []Tool{
		{
			Name:        providerCommand,
			Required:    true,
			Description: "cloud control-plane CLI used to revoke permissive settings",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.Description))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			// Try to get version (best effort)
			result.Version = getToolVersion(tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(name string) string {
	versionFlags := []string{"--version", "version", "-v"}

	for _, flag := range versionFlags {
		// #nosec G204 - name comes from operator-managed config, not request input
		cmd := exec.Command(name, flag)
		output, err := cmd.Output()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				return strings.TrimSpace(lines[0])
			}
		}
	}

	return ""
}
