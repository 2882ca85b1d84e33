package provisioning

import (
	"fmt"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/plan"
)

// ValidatePlan checks cross-resource semantics that only exist once the
// dependency order is known: binding references must resolve inside the
// plan, and every resource the hardening phase would lock down must have a
// binding that keeps some access path alive. Violations are configuration
// errors; nothing is retried.
func ValidatePlan(cfg *config.Config, deploymentPlan *plan.DeploymentPlan) error {
	for _, spec := range deploymentPlan.Resources() {
		switch spec.Kind {
		case plan.KindBinding:
			if err := validateBindingSpec(deploymentPlan, spec); err != nil {
				return err
			}
		case plan.KindWorkload:
			if err := validateWorkloadSpec(deploymentPlan, spec); err != nil {
				return err
			}
		}
	}
	return validateHardenable(deploymentPlan)
}

func validateBindingSpec(deploymentPlan *plan.DeploymentPlan, spec plan.ResourceSpec) error {
	opts, err := config.BindingOptionsFrom(spec)
	if err != nil {
		return &StepError{Kind: KindConfiguration, Resource: spec.Name, Step: "validate", Err: err}
	}
	if opts.Role == "" || opts.PrincipalFrom == "" || opts.ScopeFrom == "" {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("role-binding needs role, principal_from and scope_from"),
		}
	}

	principal, ok := deploymentPlan.Get(opts.PrincipalFrom)
	if !ok {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("principal_from %q is not in the plan", opts.PrincipalFrom),
		}
	}
	if principal.Kind != plan.KindIdentity {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("principal_from %q must name an identity resource, got kind %q", opts.PrincipalFrom, principal.Kind),
		}
	}
	if _, ok := deploymentPlan.Get(opts.ScopeFrom); !ok {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("scope_from %q is not in the plan", opts.ScopeFrom),
		}
	}

	// The binding can only be ensured after both referenced resources
	// exist, so both must be declared dependencies.
	for _, ref := range []string{opts.PrincipalFrom, opts.ScopeFrom} {
		if !spec.DependsOnName(ref) {
			return &StepError{
				Kind:     KindConfiguration,
				Resource: spec.Name,
				Step:     "validate",
				Err:      fmt.Errorf("references %q without declaring it in depends_on", ref),
			}
		}
	}
	return nil
}

func validateWorkloadSpec(deploymentPlan *plan.DeploymentPlan, spec plan.ResourceSpec) error {
	opts, err := config.WorkloadOptionsFrom(spec)
	if err != nil {
		return &StepError{Kind: KindConfiguration, Resource: spec.Name, Step: "validate", Err: err}
	}
	if opts.MountFrom == "" {
		return nil
	}

	mount, ok := deploymentPlan.Get(opts.MountFrom)
	if !ok {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("mount_from %q is not in the plan", opts.MountFrom),
		}
	}
	if mount.Kind != plan.KindStorage {
		return &StepError{
			Kind:     KindConfiguration,
			Resource: spec.Name,
			Step:     "validate",
			Err:      fmt.Errorf("mount_from %q must name a storage resource, got kind %q", opts.MountFrom, mount.Kind),
		}
	}
	return nil
}

// validateHardenable rejects plans where hardening would revoke the last
// access path: a resource with permissive settings and no binding scoped
// to it would become unreachable the moment those settings flip off.
func validateHardenable(deploymentPlan *plan.DeploymentPlan) error {
	for _, spec := range deploymentPlan.Resources() {
		if len(config.PermissiveSettings(spec)) == 0 {
			continue
		}
		if !hasBindingScopedTo(deploymentPlan, spec.Name) {
			return &StepError{
				Kind:     KindConfiguration,
				Resource: spec.Name,
				Step:     "validate",
				Err:      fmt.Errorf("declares permissive settings but no role-binding is scoped to it; hardening would cut off all access"),
			}
		}
	}
	return nil
}

func hasBindingScopedTo(deploymentPlan *plan.DeploymentPlan, name string) bool {
	for _, binding := range deploymentPlan.ByKind(plan.KindBinding) {
		opts, err := config.BindingOptionsFrom(binding)
		if err != nil {
			continue
		}
		if opts.ScopeFrom == name {
			return true
		}
	}
	return false
}
