// Package main is the entry point for the lockstep CLI.
//
// lockstep is a command-line tool for converging cloud deployments whose
// resources are applied through a declarative engine but only become usable
// after eventually-consistent control-plane operations (role-binding
// propagation, identity grants) have settled. It plans, applies, waits out
// propagation, verifies, and hardens in one run.
//
// Commands: init, plan, apply, verify, harden, destroy, status.
//
// For detailed usage information, run:
//
//	lockstep --help
package main

import (
	"fmt"
	"os"

	"github.com/lockstepd/lockstep/cmd/lockstep/commands"
	"github.com/lockstepd/lockstep/internal/provisioning"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Process exit codes. Scripts branch on these, so the mapping is stable.
const (
	exitConfiguration      = 1
	exitRetriesExhausted   = 2
	exitPropagationTimeout = 3
	exitUnverified         = 4
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a classified failure to its exit code. Errors that never
// picked up a classification are treated as configuration mistakes.
func exitCode(err error) int {
	switch provisioning.KindOf(err) {
	case provisioning.KindTransientProvider:
		return exitRetriesExhausted
	case provisioning.KindPropagationTimeout:
		return exitPropagationTimeout
	case provisioning.KindVerification:
		return exitUnverified
	default:
		return exitConfiguration
	}
}
