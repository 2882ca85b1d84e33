package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Apply returns the command that converges the deployment.
//
// Apply runs the full pipeline: plan, engine apply in dependency order,
// role-binding reconciliation and propagation confirmation, workload
// verification, and (in auto mode) hardening. It is idempotent; re-running
// against a converged deployment changes nothing.
func Apply() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge the deployment onto the declared resources",
		Long: `Apply converges the deployment onto the resources declared in the
configuration file.

The pipeline runs in order:

  1. Plan: resources are ordered by dependency into parallel waves.
  2. Apply: each resource is handed to the declarative engine. Ambiguous
     outcomes are reconciled against the provider by deterministic name,
     transient failures are retried with exponential backoff.
  3. Configure: role bindings are created where the engine left gaps, and
     each binding is polled until the provider reports it effective.
  4. Verify: the deployed workload is probed end to end.
  5. Harden: permissive bootstrap settings are revoked, but only after
     every binding that replaces them is confirmed effective. With
     hardening.mode "manual" this step is deferred to 'lockstep harden'.

Progress is written to tracked state after every step, so an interrupted
run resumes instead of recreating resources. Re-running apply against a
converged deployment is a no-op.

Exit codes: 0 converged and verified, 1 configuration error, 2 retry
budget exhausted, 3 propagation timeout, 4 deployed but unverified.

Examples:
  lockstep apply
  lockstep apply --config deploy/lockstep.yaml --env staging
  lockstep apply --retries 8 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)
	addRetryFlag(cmd, &opts)

	return cmd
}
