package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Plan returns the command that prints the ordered execution plan.
//
// Plan is read-only: it loads the configuration, orders resources by their
// declared dependencies, and prints the waves apply would execute. The
// engine, the provider, and tracked state are never touched.
func Plan() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the ordered execution plan",
		Long: `Plan prints the order in which apply will provision resources.

Resources are grouped into waves. Every resource in a wave depends only on
resources from earlier waves, so the members of one wave can be applied in
parallel. Each line shows the logical name, the kind, and the deterministic
provider-facing name derived from project and environment.

The command is read-only: it never invokes the engine or the provider and
never reads or writes tracked state. A dependency cycle or an invalid
resource reference fails here with the same error apply would report.

Examples:
  lockstep plan
  lockstep plan --config deploy/lockstep.yaml --env staging
  lockstep plan --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)

	return cmd
}
