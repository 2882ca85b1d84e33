package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, populated via SetVersionInfo from main.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo sets the version information shown by the version command.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("lockstep %s\n  commit: %s\n  built:  %s\n", version, commit, date)
		},
	}
}
