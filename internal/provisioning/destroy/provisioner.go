package destroy

import (
	"errors"
	"fmt"
	"time"

	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/engine"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/retry"
)

// errUndetermined flags an engine teardown whose outcome the engine could
// not report. The provider, not another engine run, settles it.
var errUndetermined = errors.New("engine could not determine the destroy outcome")

// Provisioner tears down deployed resources.
type Provisioner struct{}

// NewProvisioner creates the teardown phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Provision destroys every planned resource in reverse dependency order,
// sequentially. The first failing teardown stops the walk; everything
// upstream of it stays tracked for the next run.
func (p *Provisioner) Provision(pctx *provisioning.Context) error {
	pctx.State.BeginRun(pctx.RunID)
	if err := pctx.SaveState(); err != nil {
		return err
	}
	for _, spec := range pctx.Plan.Reverse() {
		if err := p.destroyOne(pctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) destroyOne(pctx *provisioning.Context, spec plan.ResourceSpec) error {
	name := pctx.ResourceName(spec.Name)
	observer := pctx.Observer.WithFields(map[string]string{"provider_name": name})

	record, tracked := pctx.State.Get(spec.Name)
	if !tracked || record.ID == "" {
		// Not tracked, but an earlier run may have created the resource
		// and lost the state write. Only a provider miss skips the
		// teardown.
		existing, err := pctx.Provider.GetResource(pctx, spec.Kind, name)
		if err != nil {
			return p.failure(pctx, observer, spec, "destroy-check", err)
		}
		if existing == nil {
			pctx.Logger.Debug().Str("resource", spec.Name).Msg("nothing to destroy")
			return nil
		}
	}

	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceDestroying,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  "handing teardown to the engine",
	})

	doc := plan.EngineResource{Name: name, Kind: spec.Kind, Target: spec.Name}
	operation := func() error {
		report, err := pctx.Engine.Destroy(pctx, doc)
		if err != nil {
			return retry.Fatal(err)
		}
		switch report.Outcome {
		case engine.OutcomeSucceeded:
			return nil
		case engine.OutcomeUnknown:
			return errUndetermined
		default:
			failure := fmt.Errorf("engine destroy failed: %s", report.Message)
			if report.Transient {
				return failure
			}
			return retry.Fatal(failure)
		}
	}

	err := retry.WithExponentialBackoff(pctx, operation,
		retry.WithPolicy(pctx.Retry),
		retry.WithRetryable(func(err error) bool {
			return !errors.Is(err, errUndetermined)
		}),
		retry.WithOnRetry(func(attempt int, delay time.Duration, cause error) {
			pctx.Metrics.RecordRetry("engine-destroy")
			observer.Event(provisioning.Event{
				Type:     provisioning.EventRetryAttempt,
				Phase:    p.Name(),
				Resource: spec.Name,
				Message:  fmt.Sprintf("destroy attempt %d failed, retrying in %s: %v", attempt, delay.Round(time.Millisecond), cause),
				Fields: map[string]string{
					"attempt": fmt.Sprintf("%d", attempt),
					"delay":   delay.String(),
				},
			})
		}),
	)

	switch {
	case err == nil, errors.Is(err, errUndetermined):
		return p.confirmGone(pctx, observer, spec, name, record.ID)
	case pctx.Err() != nil:
		return err
	default:
		return p.failure(pctx, observer, spec, "destroy", err)
	}
}

// confirmGone checks the teardown against the provider. Only a confirmed
// absence prunes the state entry; a resource still standing surfaces as a
// transient failure so the next run picks it up again.
func (p *Provisioner) confirmGone(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, name, id string) error {
	existing, err := pctx.Provider.GetResource(pctx, spec.Kind, name)
	if err != nil {
		return p.failure(pctx, observer, spec, "destroy-verify", err)
	}
	if existing != nil {
		err := fmt.Errorf("provider still reports %s after teardown", name)
		return p.failure(pctx, observer, spec, "destroy-verify", err)
	}

	pctx.State.Remove(spec.Name)
	if err := pctx.SaveState(); err != nil {
		return err
	}
	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceDestroyed,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  "confirmed gone",
	})
	pctx.Result.AddResource(provisioning.ResourceOutcome{
		Name:   spec.Name,
		Kind:   spec.Kind,
		ID:     id,
		Action: provisioning.ActionDestroyed,
	})
	return nil
}

func (p *Provisioner) failure(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, step string, err error) error {
	kind := provisioning.KindConfiguration
	if !retry.IsFatal(err) {
		kind = provisioning.KindTransientProvider
	}
	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceFailed,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  fmt.Sprintf("teardown failed: %v", err),
		Fields:   map[string]string{"classification": string(kind)},
	})
	pctx.Result.AddResource(provisioning.ResourceOutcome{
		Name:   spec.Name,
		Kind:   spec.Kind,
		Action: provisioning.ActionFailed,
		Detail: err.Error(),
	})
	return &provisioning.StepError{Kind: kind, Resource: spec.Name, Step: step, Err: err}
}
