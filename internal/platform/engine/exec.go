package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/plan"
)

// runnerFunc executes one engine invocation. Tests swap this out to avoid
// spawning processes.
type runnerFunc func(ctx context.Context, command string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, command string, args ...string) ([]byte, []byte, error) {
	// #nosec G204 - command comes from validated configuration
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CLI invokes the engine binary with a rendered plan file per resource.
type CLI struct {
	command string
	timeout time.Duration
	logger  zerolog.Logger
	run     runnerFunc
}

// NewCLI creates an engine adapter around the given binary. Every
// invocation is bounded by timeout; an engine that outlives it is treated
// as an unresolved long-running operation, not a failure.
func NewCLI(command string, timeout time.Duration, logger zerolog.Logger) *CLI {
	return &CLI{
		command: command,
		timeout: timeout,
		logger:  logger,
		run:     execRunner,
	}
}

// Apply asks the engine to converge one resource.
func (c *CLI) Apply(ctx context.Context, doc plan.EngineResource) (*Report, error) {
	return c.invoke(ctx, "apply", doc)
}

// Destroy asks the engine to tear one resource down.
func (c *CLI) Destroy(ctx context.Context, doc plan.EngineResource) (*Report, error) {
	return c.invoke(ctx, "destroy", doc)
}

func (c *CLI) invoke(ctx context.Context, verb string, doc plan.EngineResource) (*Report, error) {
	rendered, err := plan.RenderEngineFile(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering plan for %s: %w", doc.Name, err)
	}

	tmpfile, err := os.CreateTemp("", fmt.Sprintf("%s-*.yaml", doc.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp plan file: %w", err)
	}
	// Best-effort cleanup; failure to remove temp file is non-critical
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write(rendered); err != nil {
		_ = tmpfile.Close()
		return nil, fmt.Errorf("failed to write plan to temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp plan file: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug().Str("verb", verb).Str("resource", doc.Name).Msg("invoking engine")
	stdout, stderr, runErr := c.run(runCtx, c.command, verb, "--plan", tmpfile.Name(), "--output", "json")

	// A caller abort is not an engine outcome.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Our own deadline killed the engine mid-operation: the provider-side
	// work may still have completed, so this is ambiguous.
	if runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &Report{
			Outcome: OutcomeUnknown,
			Message: fmt.Sprintf("engine timed out after %s", c.timeout),
		}, nil
	}

	report := parseReport(stdout, stderr, runErr)
	c.logger.Debug().
		Str("resource", doc.Name).
		Str("outcome", string(report.Outcome)).
		Msg("engine result classified")
	return report, nil
}
