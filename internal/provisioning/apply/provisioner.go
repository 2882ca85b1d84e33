package apply

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/engine"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/reconcile"
	"github.com/lockstepd/lockstep/internal/retry"
	"github.com/lockstepd/lockstep/internal/state"
	"github.com/lockstepd/lockstep/internal/util/async"
)

// errAmbiguous marks an apply the engine could not confirm either way.
// Re-running the engine blind could duplicate provider-side work, so the
// retry loop excludes it and the reconciler resolves it instead.
var errAmbiguous = errors.New("engine could not determine the apply outcome")

// Provisioner is the apply phase. It walks the plan level by level,
// converging independent resources concurrently within each level.
type Provisioner struct{}

// NewProvisioner creates the apply phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string {
	return "apply"
}

// Provision applies all planned resources in dependency order. When any
// resource in a level reaches a terminal failure, later levels never
// start; the failed level itself always runs to completion so every
// resource in it ends with a recorded status.
func (p *Provisioner) Provision(pctx *provisioning.Context) error {
	pctx.State.BeginRun(pctx.RunID)
	if err := pctx.SaveState(); err != nil {
		return err
	}

	for index, level := range pctx.Plan.Levels() {
		if err := p.applyLevel(pctx, index, level); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) applyLevel(pctx *provisioning.Context, index int, level []plan.ResourceSpec) error {
	width := pctx.Config.Parallelism
	if width < 1 {
		width = 1
	}
	pctx.Logger.Debug().
		Int("level", index).
		Int("resources", len(level)).
		Int("parallelism", width).
		Msg("applying level")

	// No shared cancellation across the tasks: a failing sibling must
	// not kill another resource mid-apply and leave it ambiguous.
	tasks := make([]async.Task, 0, len(level))
	for _, spec := range level {
		tasks = append(tasks, async.Task{
			Name: pctx.ResourceName(spec.Name),
			Func: func(context.Context) error {
				return p.applyOne(pctx, spec)
			},
		})
	}
	return async.Run(pctx, int64(width), tasks)
}

// applyOne converges a single resource and records its terminal status.
func (p *Provisioner) applyOne(pctx *provisioning.Context, spec plan.ResourceSpec) error {
	name := pctx.ResourceName(spec.Name)
	observer := pctx.Observer.WithFields(map[string]string{"provider_name": name})

	doc, err := renderDocument(pctx, spec, name)
	if err != nil {
		return p.reportFailure(pctx, observer, spec, provisioning.KindConfiguration, "resolve-inputs", err)
	}

	prior, hadPrior := pctx.State.Get(spec.Name)

	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceApplying,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  fmt.Sprintf("applying %s through the engine", spec.Kind),
	})

	var report *engine.Report
	operation := func() error {
		result, err := pctx.Engine.Apply(pctx, doc)
		if err != nil {
			// Adapter-internal failure or caller abort, not an
			// engine verdict.
			return retry.Fatal(err)
		}
		report = result
		switch result.Outcome {
		case engine.OutcomeSucceeded:
			return nil
		case engine.OutcomeUnknown:
			return errAmbiguous
		default:
			failure := errors.New(failureDetail(result))
			if result.Transient {
				return failure
			}
			return retry.Fatal(failure)
		}
	}

	err = retry.WithExponentialBackoff(pctx, operation,
		retry.WithPolicy(pctx.Retry),
		retry.WithRetryable(func(err error) bool {
			return !errors.Is(err, errAmbiguous)
		}),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			pctx.Metrics.RecordRetry("engine-apply")
			observer.Event(provisioning.Event{
				Type:     provisioning.EventRetryAttempt,
				Phase:    p.Name(),
				Resource: spec.Name,
				Message:  err.Error(),
				Fields: map[string]string{
					"attempt": strconv.Itoa(attempt),
					"delay":   delay.String(),
				},
			})
		}),
	)

	switch {
	case err == nil:
		return p.recordSuccess(pctx, observer, spec, prior, hadPrior, report)
	case errors.Is(err, errAmbiguous):
		return p.resolveAmbiguous(pctx, observer, spec, name, report)
	case pctx.Err() != nil:
		return err
	default:
		return p.concludeFailure(pctx, observer, spec, name, err)
	}
}

func (p *Provisioner) recordSuccess(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, prior state.Record, hadPrior bool, report *engine.Report) error {
	id := report.ID
	if id == "" {
		id = prior.ID
	}
	unchanged := hadPrior && prior.Outcome == state.OutcomeSucceeded && prior.ID == id

	pctx.State.RecordApply(spec.Name, spec.Kind, id, report.Outputs)
	if err := pctx.SaveState(); err != nil {
		return err
	}
	pctx.Metrics.RecordApply(spec.Kind, string(engine.OutcomeSucceeded))

	action := provisioning.ActionCreated
	eventType := provisioning.EventResourceApplied
	message := "engine confirmed the resource"
	if unchanged {
		action = provisioning.ActionUnchanged
		eventType = provisioning.EventResourceUnchanged
		message = "already converged"
	}
	observer.Event(provisioning.Event{
		Type:     eventType,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  message,
		Fields:   map[string]string{"id": id},
	})
	pctx.Result.AddResource(provisioning.ResourceOutcome{
		Name:   spec.Name,
		Kind:   spec.Kind,
		ID:     id,
		Action: action,
	})
	return nil
}

// resolveAmbiguous asks the provider whether an Unknown apply actually
// landed. A resource found under its deterministic name is imported; one
// that never appears within the window turns the ambiguity into a
// definite failure.
func (p *Provisioner) resolveAmbiguous(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, name string, report *engine.Report) error {
	pctx.Metrics.RecordApply(spec.Kind, string(engine.OutcomeUnknown))
	detail := "engine lost track of the operation"
	if report != nil && report.Message != "" {
		detail = report.Message
	}
	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceAmbiguous,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  detail,
	})

	resource, err := pctx.Resolver.Resolve(pctx, spec.Kind, name)
	switch {
	case err == nil:
		pctx.State.RecordImport(spec.Name, spec.Kind, resource.ID, mergedOutputs(report, resource))
		if err := pctx.SaveState(); err != nil {
			return err
		}
		observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceImported,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  "found by the provider and imported",
			Fields:   map[string]string{"id": resource.ID},
		})
		pctx.Result.AddResource(provisioning.ResourceOutcome{
			Name:   spec.Name,
			Kind:   spec.Kind,
			ID:     resource.ID,
			Action: provisioning.ActionImported,
			Detail: "recovered after an ambiguous apply",
		})
		return nil
	case reconcile.IsUnresolved(err):
		// The window closed with the provider never showing the
		// resource, so the ambiguous apply is now a definite failure.
		pctx.State.RecordFailure(spec.Name, spec.Kind)
		if saveErr := pctx.SaveState(); saveErr != nil {
			return saveErr
		}
		return p.reportFailure(pctx, observer, spec, provisioning.KindTransientProvider, "reconcile", err)
	default:
		return err
	}
}

// concludeFailure handles an apply whose retries are spent. The engine's
// word is checked against the provider once: a resource that exists
// despite the reported failure is imported and the mismatch only logged.
func (p *Provisioner) concludeFailure(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, name string, applyErr error) error {
	pctx.Metrics.RecordApply(spec.Kind, string(engine.OutcomeFailed))

	if resource := p.survivingResource(pctx, spec.Kind, name); resource != nil {
		pctx.State.RecordImport(spec.Name, spec.Kind, resource.ID, resource.Outputs)
		if err := pctx.SaveState(); err != nil {
			return err
		}
		pctx.Logger.Warn().
			Str("classification", string(provisioning.KindPartialSuccess)).
			Str("resource", spec.Name).
			Str("id", resource.ID).
			AnErr("apply_error", applyErr).
			Msg("engine reported failure but the resource exists; imported")
		observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceImported,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  "engine reported failure but the resource exists",
			Fields:   map[string]string{"id": resource.ID},
		})
		pctx.Result.AddResource(provisioning.ResourceOutcome{
			Name:   spec.Name,
			Kind:   spec.Kind,
			ID:     resource.ID,
			Action: provisioning.ActionImported,
			Detail: "imported despite a reported engine failure",
		})
		return nil
	}

	pctx.State.RecordFailure(spec.Name, spec.Kind)
	if err := pctx.SaveState(); err != nil {
		return err
	}

	kind := provisioning.KindConfiguration
	if !retry.IsFatal(applyErr) {
		// Only a transient failure consumes the whole retry budget.
		kind = provisioning.KindTransientProvider
	}
	return p.reportFailure(pctx, observer, spec, kind, "apply", applyErr)
}

// survivingResource performs the single post-failure existence check.
// Any provider error means "could not confirm", never "exists".
func (p *Provisioner) survivingResource(pctx *provisioning.Context, kind, name string) *provider.Resource {
	if pctx.Err() != nil {
		return nil
	}
	resource, err := pctx.Provider.GetResource(pctx, kind, name)
	if err != nil {
		pctx.Logger.Debug().Err(err).Str("name", name).Msg("post-failure existence check did not answer")
		return nil
	}
	return resource
}

func (p *Provisioner) reportFailure(pctx *provisioning.Context, observer provisioning.Observer, spec plan.ResourceSpec, kind provisioning.ErrorKind, step string, err error) error {
	observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceFailed,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  err.Error(),
		Fields:   map[string]string{"classification": string(kind)},
	})
	pctx.Result.AddResource(provisioning.ResourceOutcome{
		Name:   spec.Name,
		Kind:   spec.Kind,
		Action: provisioning.ActionFailed,
		Detail: err.Error(),
	})
	return &provisioning.StepError{
		Kind:     kind,
		Resource: spec.Name,
		Step:     step,
		Err:      err,
	}
}

// renderDocument builds the engine document for one resource. Config keys
// ending in "_from" are resolved to the provider identifiers recorded for
// the referenced resources and moved under Inputs without the suffix.
func renderDocument(pctx *provisioning.Context, spec plan.ResourceSpec, name string) (plan.EngineResource, error) {
	doc := plan.EngineResource{
		Name:   name,
		Kind:   spec.Kind,
		Target: spec.Name,
	}
	for key, value := range spec.Config {
		target, ok := referenceTarget(key, value)
		if !ok {
			if doc.Config == nil {
				doc.Config = make(map[string]any)
			}
			doc.Config[key] = value
			continue
		}
		record, exists := pctx.State.Get(target)
		if !exists || record.ID == "" {
			return plan.EngineResource{}, fmt.Errorf("config key %q references %q, which has no recorded identifier", key, target)
		}
		if doc.Inputs == nil {
			doc.Inputs = make(map[string]string)
		}
		doc.Inputs[strings.TrimSuffix(key, "_from")] = record.ID
	}
	return doc, nil
}

func referenceTarget(key string, value any) (string, bool) {
	if !strings.HasSuffix(key, "_from") {
		return "", false
	}
	target, ok := value.(string)
	if !ok || target == "" {
		return "", false
	}
	return target, true
}

func failureDetail(report *engine.Report) string {
	if report.Message != "" {
		return report.Message
	}
	return "engine reported failure without detail"
}

func mergedOutputs(report *engine.Report, resource *provider.Resource) map[string]string {
	merged := make(map[string]string)
	if report != nil {
		for key, value := range report.Outputs {
			merged[key] = value
		}
	}
	for key, value := range resource.Outputs {
		merged[key] = value
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}
