package configure

import (
	"fmt"
	"strings"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/provider"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/retry"
)

// hardenPhase labels hardening events whether they come from the apply
// pipeline or from an explicit operator command.
const hardenPhase = "harden"

// finishHardening runs hardening in auto mode and defers it otherwise.
func (p *Provisioner) finishHardening(pctx *provisioning.Context) error {
	if pctx.Config.HardenAutomatically() {
		return p.Harden(pctx)
	}

	note := "hardening.mode is manual; run `lockstep harden` once ready"
	pctx.Result.SetHardening(false, note)
	pctx.Observer.Event(provisioning.Event{
		Type:    provisioning.EventHardeningDeferred,
		Phase:   hardenPhase,
		Message: note,
	})
	return nil
}

// Harden revokes permissive bootstrap settings on every resource that
// declares them. It refuses to run while any planned role binding is not
// confirmed effective: revoking the open door before the grant is live
// would cut off all access. Already hardened resources are skipped, so
// re-running is safe.
func (p *Provisioner) Harden(pctx *provisioning.Context) error {
	for _, spec := range pctx.Plan.ByKind(plan.KindBinding) {
		record, ok := pctx.State.Get(spec.Name)
		if !ok || !record.Effective {
			err := fmt.Errorf("role binding %q is not confirmed effective; hardening now could cut off all access", spec.Name)
			return p.configError(spec.Name, "harden", err)
		}
	}

	permissive := 0
	for _, spec := range pctx.Plan.Resources() {
		keys := config.PermissiveSettings(spec)
		if len(keys) == 0 {
			continue
		}
		permissive++

		record, _ := pctx.State.Get(spec.Name)
		if record.Hardened {
			continue
		}
		if err := p.hardenResource(pctx, spec, keys); err != nil {
			return err
		}
	}

	note := ""
	if permissive == 0 {
		note = "no permissive settings declared"
	}
	pctx.Result.SetHardening(true, note)
	return nil
}

func (p *Provisioner) hardenResource(pctx *provisioning.Context, spec plan.ResourceSpec, keys []string) error {
	pctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventHardeningStarted,
		Phase:    hardenPhase,
		Resource: spec.Name,
		Message:  fmt.Sprintf("revoking %s", strings.Join(keys, ", ")),
	})

	settings := make(map[string]string, len(keys))
	for _, key := range keys {
		settings[key] = "false"
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

	err := retry.WithExponentialBackoff(pctx, operation,
		retry.WithPolicy(pctx.Retry),
		retry.WithOnRetry(p.retryEvent(pctx, spec.Name, "update-resource")),
	)
	if err != nil {
		if pctx.Err() != nil {
			return err
		}
		return p.stepError(spec.Name, "harden", err)
	}

	pctx.State.MarkHardened(spec.Name)
	if err := pctx.SaveState(); err != nil {
		return err
	}
	pctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventHardeningApplied,
		Phase:    hardenPhase,
		Resource: spec.Name,
		Message:  "permissive settings revoked",
	})
	return nil
}
