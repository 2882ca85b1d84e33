package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Verify returns the command that probes an already-applied deployment.
func Verify() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Probe the deployed workload without changing anything",
		Long: `Verify probes the deployed workload end to end and reports the result.

For each workload the probe checks the health endpoint, performs a storage
round trip through the workload's mounted storage, and confirms the written
object is listed. Nothing is created, modified, or deleted; tracked state
is read but never written.

A failing probe exits with code 4: the deployment stands, but it could not
be verified. This is the same check apply runs as its final step, exposed
separately for health monitoring and post-incident checks.

Examples:
  lockstep verify
  lockstep verify --env staging --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Verify(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)

	return cmd
}
