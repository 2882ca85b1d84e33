package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Destroy returns the destroy command.
//
// Destroy removes every resource the deployment tracks, in reverse
// dependency order, and prunes tracked state as the provider confirms each
// resource gone.
func Destroy() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the deployment and all tracked resources",
		Long: `Destroy tears down every resource the deployment tracks.

Resources are destroyed in reverse dependency order: workloads first,
then role bindings, then the identities and storage they referenced. Each
teardown is handed to the engine and then confirmed against the provider;
a tracked entry is only pruned from state once the provider no longer
reports the resource. Declared resources that exist at the provider but
are missing from tracked state are swept as well.

Transient failures are retried with the same backoff budget as apply. If
a resource cannot be confirmed gone the walk stops and the remaining
entries stay in state for the next run.

Example:
  lockstep destroy --config deploy/lockstep.yaml

WARNING: This operation is irreversible. Stored data is deleted with the
resources that hold it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)
	addRetryFlag(cmd, &opts)

	return cmd
}
