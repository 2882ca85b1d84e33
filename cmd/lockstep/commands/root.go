// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lockstepd/lockstep/cmd/lockstep/handlers"
)

// Root returns the root command for the lockstep CLI.
//
// The root command serves as the entry point and parent for all subcommands.
// It provides basic CLI metadata and organizes the command hierarchy.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lockstep",
		Short: "Converge cloud deployments through apply, propagation, and hardening",

		// Failures are reported once by main with their exit code.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Core commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Verify())
	cmd.AddCommand(Harden())
	cmd.AddCommand(Destroy())

	// Utility commands
	cmd.AddCommand(Status())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// addConfigFlags registers the flags shared by every command that reads the
// deployment configuration.
func addConfigFlags(cmd *cobra.Command, opts *handlers.RunOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", handlers.DefaultConfigPath, "Path to the deployment configuration file")
	cmd.Flags().StringVarP(&opts.Environment, "env", "e", "", "Override the environment declared in the configuration")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the report as JSON instead of styled text")
}

// addRetryFlag registers the retry budget override for commands that call
// the engine or the provider.
func addRetryFlag(cmd *cobra.Command, opts *handlers.RunOptions) {
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "Override retry.max_attempts (total attempts per operation)")
}
