package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/state"
)

// Factory function variables for status - can be replaced in tests.
var (
	// loadStateDocument reads the tracked state for a config.
	loadStateDocument = func(path, project, environment string) (state.Document, error) {
		manager := state.NewManager(path, project, environment)
		if err := manager.Load(); err != nil {
			return state.Document{}, err
		}
		return manager.Snapshot(), nil
	}
)

// Status handles the status command.
//
// It prints the tracked state of each resource from the local state file.
// The engine and the provider are never called, so the output reflects the
// world as of the last run.
func Status(_ context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	doc, err := loadStateDocument(cfg.State.Path, cfg.Project, cfg.Environment)
	if err != nil {
		return &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "state-load", Err: err}
	}

	if opts.JSON {
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Print(renderStatus(&doc))
	return nil
}
