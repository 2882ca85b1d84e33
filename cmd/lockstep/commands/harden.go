package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Harden returns the command that revokes permissive bootstrap settings.
//
// This is the manual half of two-phase hardening: apply leaves permissive
// settings in place when hardening.mode is "manual", and this command flips
// them off once the operator is ready.
func Harden() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "harden",
		Short: "Revoke permissive bootstrap settings",
		Long: `Harden revokes the permissive bootstrap settings of the deployment.

Resources such as storage start life with permissive access enabled so the
deployment works before identity grants have propagated. Hardening turns
those settings off, leaving role bindings as the only access path.

The command refuses to harden while any role binding replacing a
permissive setting is not yet confirmed effective; hardening first would
cut off the workload. Run 'lockstep apply' (or wait and re-run) until
propagation is confirmed, then harden.

Hardening is recorded per resource in tracked state, so re-running this
command against a hardened deployment changes nothing.

Examples:
  lockstep harden
  lockstep harden --config deploy/lockstep.yaml --env staging`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Harden(cmd.Context(), opts)
		},
	}

	addConfigFlags(cmd, &opts)
	addRetryFlag(cmd, &opts)

	return cmd
}
