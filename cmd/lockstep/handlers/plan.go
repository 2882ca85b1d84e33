package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/util/naming"
)

// planEntry is one resource line of the machine-readable plan.
type planEntry struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	ProviderName string   `json:"provider_name"`
	Wave         int      `json:"wave"`
	DependsOn    []string `json:"depends_on,omitempty"`
}

// Plan handles the plan command.
//
// It orders the declared resources and prints the waves apply would
// execute, without invoking the engine or the provider. Validation is the
// same as apply's, so a plan that prints cleanly will not fail planning at
// apply time.
func Plan(_ context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	deploymentPlan, err := plan.Build(cfg.Resources)
	if err != nil {
		return &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "plan", Err: err}
	}
	if err := provisioning.ValidatePlan(cfg, deploymentPlan); err != nil {
		return err
	}

	entries := planEntries(cfg.Project, cfg.Environment, deploymentPlan)

	if opts.JSON {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Print(renderPlan(cfg.Project, cfg.Environment, cfg.Parallelism, entries))
	return nil
}

// planEntries flattens the plan's waves into report lines.
func planEntries(project, environment string, deploymentPlan *plan.DeploymentPlan) []planEntry {
	var entries []planEntry
	for wave, specs := range deploymentPlan.Levels() {
		for _, spec := range specs {
			entries = append(entries, planEntry{
				Name:         spec.Name,
				Kind:         spec.Kind,
				ProviderName: naming.Resource(project, environment, spec.Name),
				Wave:         wave + 1,
				DependsOn:    spec.DependsOn,
			})
		}
	}
	return entries
}
