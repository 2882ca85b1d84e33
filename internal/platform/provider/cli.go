package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// runnerFunc executes one CLI invocation and returns stdout and stderr
// separately. Tests swap this out to avoid spawning processes.
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

// CLIClient implements Client by shelling out to the configured
// control-plane binary.
type CLIClient struct {
	command string
	timeout time.Duration
	logger  zerolog.Logger
	run     runnerFunc
}

// NewCLIClient creates a provider client around the given binary. Every
// invocation is bounded by timeout.
func NewCLIClient(command string, timeout time.Duration, logger zerolog.Logger) *CLIClient {
	return &CLIClient{
		command: command,
		timeout: timeout,
		logger:  logger,
		run:     execRunner,
	}
}

// GetResource looks a resource up by kind and deterministic name.
func (c *CLIClient) GetResource(ctx context.Context, kind, name string) (*Resource, error) {
	stdout, err := c.invoke(ctx, "show", kind, name, "-o", "json")
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var res Resource
	if err := json.Unmarshal(stdout, &res); err != nil {
		return nil, fmt.Errorf("parsing provider response for %s %s: %w", kind, name, err)
	}
	return &res, nil
}

// ListRoleBindings returns the bindings visible for a principal and scope.
func (c *CLIClient) ListRoleBindings(ctx context.Context, principal, scope string) ([]Binding, error) {
	stdout, err := c.invoke(ctx, "list", "role-bindings",
		"--principal", principal, "--scope", scope, "-o", "json")
	if err != nil {
		return nil, err
	}

	var bindings []Binding
	if err := json.Unmarshal(stdout, &bindings); err != nil {
		return nil, fmt.Errorf("parsing role-binding list: %w", err)
	}
	return bindings, nil
}

// CreateRoleBinding grants role to principal on scope.
func (c *CLIClient) CreateRoleBinding(ctx context.Context, principal, role, scope string) error {
	_, err := c.invoke(ctx, "create", "role-binding",
		"--principal", principal, "--role", role, "--scope", scope, "-o", "json")
	return err
}

// UpdateResource patches named settings on a resource. Settings are passed
// in key order so invocations are reproducible.
func (c *CLIClient) UpdateResource(ctx context.Context, kind, name string, settings map[string]string) error {
	args := []string{"update", kind, name}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--set", fmt.Sprintf("%s=%s", k, settings[k]))
	}

	_, err := c.invoke(ctx, args...)
	return err
}

// DeleteResource removes a resource; already gone counts as removed.
func (c *CLIClient) DeleteResource(ctx context.Context, kind, name string) error {
	_, err := c.invoke(ctx, "delete", kind, name)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (c *CLIClient) invoke(ctx context.Context, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug().Str("command", c.command).Strs("args", args).Msg("invoking provider")
	stdout, stderr, err := c.run(ctx, c.command, args...)
	if err != nil {
		op := "invoke"
		if len(args) > 0 {
			op = args[0]
		}
		return nil, &CLIError{
			Op:     op,
			Code:   classify(string(stderr)),
			Stderr: string(stderr),
			Err:    err,
		}
	}
	return stdout, nil
}
