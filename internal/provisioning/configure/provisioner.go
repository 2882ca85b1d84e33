package configure

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/grants"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/retry"
)

// Provisioner is the configure phase. It runs strictly after apply: every
// resource it touches is already converged and has a recorded identifier.
type Provisioner struct{}

// NewProvisioner creates the configure phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string {
	return "configure"
}

// Provision ensures every planned role binding is in place and confirmed
// visible, wires workload mounts, and finishes with hardening when the
// configuration asks for it. Bindings confirmed by an earlier run are
// not re-verified; re-running resumes from recorded state.
func (p *Provisioner) Provision(pctx *provisioning.Context) error {
	for _, spec := range pctx.Plan.ByKind(plan.KindBinding) {
		record, _ := pctx.State.Get(spec.Name)
		if record.Effective {
			pctx.Observer.Event(provisioning.Event{
				Type:     provisioning.EventBindingExists,
				Phase:    p.Name(),
				Resource: spec.Name,
				Message:  "confirmed effective in an earlier run",
			})
			continue
		}

		binding, err := p.resolveBinding(pctx, spec)
		if err != nil {
			return err
		}
		if err := p.ensureBinding(pctx, spec, binding); err != nil {
			return err
		}
		if err := p.awaitEffective(pctx, spec, binding); err != nil {
			return err
		}
	}

	if err := p.wireMounts(pctx); err != nil {
		return err
	}
	return p.finishHardening(pctx)
}

// resolveBinding turns a binding spec into the concrete principal, role
// and scope triple using the identifiers recorded during apply.
func (p *Provisioner) resolveBinding(pctx *provisioning.Context, spec plan.ResourceSpec) (provider.Binding, error) {
	opts, err := config.BindingOptionsFrom(spec)
	if err != nil {
		return provider.Binding{}, p.configError(spec.Name, "configure", err)
	}
	principal, err := recordID(pctx, opts.PrincipalFrom)
	if err != nil {
		return provider.Binding{}, p.configError(spec.Name, "configure", err)
	}
	scope, err := recordID(pctx, opts.ScopeFrom)
	if err != nil {
		return provider.Binding{}, p.configError(spec.Name, "configure", err)
	}
	return provider.Binding{Principal: principal, Role: opts.Role, Scope: scope}, nil
}

// ensureBinding creates the role binding, treating "already exists" as
// success and retrying transient provider failures.
func (p *Provisioner) ensureBinding(pctx *provisioning.Context, spec plan.ResourceSpec, binding provider.Binding) error {
	pctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventBindingCreating,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  "ensuring role binding",
		Fields: map[string]string{
			"principal": binding.Principal,
			"role":      binding.Role,
			"scope":     binding.Scope,
		},
	})

	alreadyExists := false
	operation := func() error {
		err := pctx.Provider.CreateRoleBinding(pctx, binding.Principal, binding.Role, binding.Scope)
		switch {
		case err == nil:
			return nil
		case provider.IsAlreadyExists(err):
			alreadyExists = true
			return nil
		case provider.IsTransient(err):
			return err
		default:
			return retry.Fatal(err)
		}
	}

	err := retry.WithExponentialBackoff(pctx, operation,
		retry.WithPolicy(pctx.Retry),
		retry.WithOnRetry(p.retryEvent(pctx, spec.Name, "create-role-binding")),
	)
	if err != nil {
		if pctx.Err() != nil {
			return err
		}
		return p.stepError(spec.Name, "bind", err)
	}

	if alreadyExists {
		pctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventBindingExists,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  "role binding was already in place",
		})
	}
	return nil
}

// awaitEffective blocks until the provider lists the exact binding. Only
// then is the binding marked effective in state; hardening keys off that
// mark and nothing else.
func (p *Provisioner) awaitEffective(pctx *provisioning.Context, spec plan.ResourceSpec, binding provider.Binding) error {
	err := pctx.Waiter.WaitEffective(pctx, binding)
	switch {
	case err == nil:
		pctx.State.MarkEffective(spec.Name)
		if err := pctx.SaveState(); err != nil {
			return err
		}
		pctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventBindingEffective,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  "role binding is visible and effective",
		})
		return nil
	case grants.IsPropagationTimeout(err):
		pctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceFailed,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  err.Error(),
			Fields:   map[string]string{"classification": string(provisioning.KindPropagationTimeout)},
		})
		return &provisioning.StepError{
			Kind:     provisioning.KindPropagationTimeout,
			Resource: spec.Name,
			Step:     "propagation-wait",
			Err:      err,
		}
	default:
		return err
	}
}

// wireMounts points each workload at its storage over identity auth. The
// declarative apply created the workload; the mount is patched in
// imperatively once the grant chain is known to hold.
func (p *Provisioner) wireMounts(pctx *provisioning.Context) error {
	for _, spec := range pctx.Plan.ByKind(plan.KindWorkload) {
		opts, err := config.WorkloadOptionsFrom(spec)
		if err != nil {
			return p.configError(spec.Name, "configure", err)
		}
		if opts.MountFrom == "" {
			continue
		}
		if err := p.wireMount(pctx, spec, opts); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) wireMount(pctx *provisioning.Context, spec plan.ResourceSpec, opts config.WorkloadOptions) error {
	storageID, err := recordID(pctx, opts.MountFrom)
	if err != nil {
		return p.configError(spec.Name, "wire-mount", err)
	}

	settings := map[string]string{
		"mount_source": storageID,
		"auth_mode":    "identity",
	}
	if principal := mountPrincipal(pctx, opts.MountFrom); principal != "" {
		settings["auth_principal"] = principal
	}

	name := pctx.ResourceName(spec.Name)
	operation := func() error {
		err := pctx.Provider.UpdateResource(pctx, spec.Kind, name, settings)
		if err == nil {
			return nil
		}
		if provider.IsTransient(err) {
			return err
		}
		return retry.Fatal(err)
	}

	err = retry.WithExponentialBackoff(pctx, operation,
		retry.WithPolicy(pctx.Retry),
		retry.WithOnRetry(p.retryEvent(pctx, spec.Name, "update-resource")),
	)
	if err != nil {
		if pctx.Err() != nil {
			return err
		}
		return p.stepError(spec.Name, "wire-mount", err)
	}

	pctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventMountWired,
		Phase:    p.Name(),
		Resource: spec.Name,
		Message:  fmt.Sprintf("mounted %s", opts.MountFrom),
		Fields:   map[string]string{"storage_id": storageID},
	})
	return nil
}

// mountPrincipal finds the identity granted on the mounted storage by
// scanning the planned bindings. An empty return means no binding scopes
// the storage, which validation normally rules out.
func mountPrincipal(pctx *provisioning.Context, storageName string) string {
	for _, spec := range pctx.Plan.ByKind(plan.KindBinding) {
		opts, err := config.BindingOptionsFrom(spec)
		if err != nil || opts.ScopeFrom != storageName {
			continue
		}
		if record, ok := pctx.State.Get(opts.PrincipalFrom); ok {
			return record.ID
		}
	}
	return ""
}

func (p *Provisioner) retryEvent(pctx *provisioning.Context, resource, operation string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		pctx.Metrics.RecordRetry(operation)
		pctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventRetryAttempt,
			Phase:    p.Name(),
			Resource: resource,
			Message:  err.Error(),
			Fields: map[string]string{
				"attempt": strconv.Itoa(attempt),
				"delay":   delay.String(),
			},
		})
	}
}

// stepError classifies a spent retry: an exhausted transient failure and
// a definitive rejection exit differently.
func (p *Provisioner) stepError(resource, step string, err error) error {
	kind := provisioning.KindConfiguration
	if !retry.IsFatal(err) {
		kind = provisioning.KindTransientProvider
	}
	return &provisioning.StepError{Kind: kind, Resource: resource, Step: step, Err: err}
}

func (p *Provisioner) configError(resource, step string, err error) error {
	return &provisioning.StepError{
		Kind:     provisioning.KindConfiguration,
		Resource: resource,
		Step:     step,
		Err:      err,
	}
}

func recordID(pctx *provisioning.Context, name string) (string, error) {
	record, ok := pctx.State.Get(name)
	if !ok || record.ID == "" {
		return "", fmt.Errorf("resource %q has no recorded identifier", name)
	}
	return record.ID, nil
}
