package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Init returns the command that writes a starter configuration file.
//
// Flags:
//
//	--output, -o: Path to the output file (default "lockstep.yaml")
//	--force, -f: Overwrite an existing file
func Init() *cobra.Command {
	var (
		outputPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter deployment configuration",
		Long: `Init writes a commented starter configuration file.

The generated file declares a small four-resource deployment (storage, an
identity, a role binding, and a workload that mounts the storage) with
sensible defaults for retries, hardening, and telemetry. Edit the resource
list and the engine/provider commands to match your deployment, then run
'lockstep plan' to see the execution order.

An existing file is never overwritten unless --force is given.

Examples:
  lockstep init
  lockstep init --output deploy/lockstep.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", handlers.DefaultConfigPath, "Output file path")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
