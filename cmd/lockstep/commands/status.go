package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Status returns the command that prints the tracked deployment state.
func Status() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the tracked state of the deployment",
		Long: `Status prints what the deployment currently tracks for each resource:
the provider-assigned identifier, the outcome of the last apply, and
whether bindings are confirmed effective and permissive settings revoked.

The command reads the local state file only. It never calls the engine or
the provider, so it reflects the world as of the last run, not live
provider state. Use 'lockstep verify' to check the deployment itself.

Examples:
  lockstep status
  lockstep status --env staging --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)

	return cmd
}
