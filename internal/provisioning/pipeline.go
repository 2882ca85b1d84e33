package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all pipeline phases sequentially. The first phase
// error stops the run; later phases never start on an unsatisfied
// dependency chain.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Logger.Info().
		Int("phases", len(phases)).
		Str("run_id", ctx.RunID).
		Msg("starting pipeline")

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		LogPhaseStart(ctx.Observer, name)

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Logger.Info().
		Dur("duration", time.Since(start)).
		Msg("pipeline completed")
	return nil
}
