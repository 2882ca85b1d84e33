package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/platform/engine"
	"github.com/lockstepd/lockstep/internal/platform/provider"
)

// DeploymentFixture simulates the declarative engine and the provider
// control plane in memory. Applies materialize resources under their
// deterministic names with stable generated identifiers; role bindings
// become listable only after a configurable number of visibility polls,
// mimicking provider-side propagation.
type DeploymentFixture struct {
	mu sync.Mutex

	resources map[string]*fixtureResource
	bindings  []*fixtureBinding
	serial    map[string]int

	transientApplyFailures   map[string]int
	fatalApplyFailures       map[string]bool
	ambiguousApplies         map[string]int
	lostApplies              map[string]int
	transientDestroyFailures map[string]int
	ambiguousDestroys        map[string]int
	workloadEndpoints        map[string]string
	propagationLag           int

	engine   *engine.MockApplier
	provider *provider.MockClient
}

type fixtureResource struct {
	resource provider.Resource
	settings map[string]string
}

type fixtureBinding struct {
	binding     provider.Binding
	sourceName  string
	hiddenPolls int
}

// NewDeploymentFixture creates a fixture with an empty control plane and
// no failure injection: every apply succeeds on the first attempt and
// bindings are visible immediately.
func NewDeploymentFixture() *DeploymentFixture {
	return &DeploymentFixture{
		resources:                make(map[string]*fixtureResource),
		serial:                   make(map[string]int),
		transientApplyFailures:   make(map[string]int),
		fatalApplyFailures:       make(map[string]bool),
		ambiguousApplies:         make(map[string]int),
		lostApplies:              make(map[string]int),
		transientDestroyFailures: make(map[string]int),
		ambiguousDestroys:        make(map[string]int),
		workloadEndpoints:        make(map[string]string),
	}
}

// WithTransientApplyFailures makes the first count applies of the named
// document fail with a retryable engine report.
func (f *DeploymentFixture) WithTransientApplyFailures(name string, count int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientApplyFailures[name] = count
	return f
}

// WithFatalApplyFailure makes every apply of the named document fail with
// a non-retryable engine report.
func (f *DeploymentFixture) WithFatalApplyFailure(name string) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatalApplyFailures[name] = true
	return f
}

// WithAmbiguousApply makes the first count applies of the named document
// report Unknown while the provider-side work still lands, the way an
// engine that stopped watching a long-running operation behaves.
func (f *DeploymentFixture) WithAmbiguousApply(name string, count int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ambiguousApplies[name] = count
	return f
}

// WithLostApply makes the first count applies of the named document
// report Unknown with nothing actually created.
func (f *DeploymentFixture) WithLostApply(name string, count int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostApplies[name] = count
	return f
}

// WithPropagationLag hides every future role binding for the given number
// of visibility polls.
func (f *DeploymentFixture) WithPropagationLag(polls int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propagationLag = polls
	return f
}

// WithTransientDestroyFailures makes the first count destroys of the
// named document fail with a retryable engine report.
func (f *DeploymentFixture) WithTransientDestroyFailures(name string, count int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientDestroyFailures[name] = count
	return f
}

// WithAmbiguousDestroy makes the first count destroys of the named
// document report Unknown while the resource is in fact removed.
func (f *DeploymentFixture) WithAmbiguousDestroy(name string, count int) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ambiguousDestroys[name] = count
	return f
}

// WithWorkloadEndpoint overrides the endpoint output the named workload
// document reports, so probes can be pointed at a live test server.
func (f *DeploymentFixture) WithWorkloadEndpoint(name, endpoint string) *DeploymentFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workloadEndpoints[name] = endpoint
	return f
}

// SeedResource places a live resource in the control plane without any
// engine involvement, as if created out of band or by an earlier run.
func (f *DeploymentFixture) SeedResource(kind, name string) provider.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.ensureLocked(plan.EngineResource{Name: name, Kind: kind})
	return res.resource
}

// SeedBinding places a visible role binding in the control plane.
func (f *DeploymentFixture) SeedBinding(principal, role, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, &fixtureBinding{
		binding: provider.Binding{Principal: principal, Role: role, Scope: scope},
	})
}

// Engine returns the mock engine wired to this fixture. Repeated calls
// return the same mock so recorded documents accumulate.
func (f *DeploymentFixture) Engine() *engine.MockApplier {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.engine == nil {
		f.engine = &engine.MockApplier{
			ApplyFunc:   f.applyResource,
			DestroyFunc: f.destroyResource,
		}
	}
	return f.engine
}

// Provider returns the mock provider client wired to this fixture.
func (f *DeploymentFixture) Provider() *provider.MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.provider == nil {
		f.provider = &provider.MockClient{
			GetResourceFunc:       f.getResource,
			ListRoleBindingsFunc:  f.listRoleBindings,
			CreateRoleBindingFunc: f.createRoleBinding,
			UpdateResourceFunc:    f.updateResource,
			DeleteResourceFunc:    f.deleteResource,
		}
	}
	return f.provider
}

// Resource returns the live resource under the given provider name.
func (f *DeploymentFixture) Resource(name string) (provider.Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.resources[name]
	if !ok {
		return provider.Resource{}, false
	}
	return entry.resource, true
}

// ResourceCount returns how many resources are live.
func (f *DeploymentFixture) ResourceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resources)
}

// Settings returns the imperatively patched settings of a resource.
func (f *DeploymentFixture) Settings(name string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.resources[name]
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(entry.settings))
	for key, value := range entry.settings {
		settings[key] = value
	}
	return settings
}

// Bindings returns every role binding, visible or still propagating.
func (f *DeploymentFixture) Bindings() []provider.Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.Binding, 0, len(f.bindings))
	for _, entry := range f.bindings {
		out = append(out, entry.binding)
	}
	return out
}

func (f *DeploymentFixture) applyResource(_ context.Context, doc plan.EngineResource) (*engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transientApplyFailures[doc.Name] > 0 {
		f.transientApplyFailures[doc.Name]--
		return &engine.Report{
			Outcome:   engine.OutcomeFailed,
			Message:   "provider rate limit hit",
			Transient: true,
		}, nil
	}
	if f.fatalApplyFailures[doc.Name] {
		return &engine.Report{
			Outcome: engine.OutcomeFailed,
			Message: "declaration rejected by provider",
		}, nil
	}
	if f.lostApplies[doc.Name] > 0 {
		f.lostApplies[doc.Name]--
		return &engine.Report{
			Outcome: engine.OutcomeUnknown,
			Message: "engine stopped watching the operation",
		}, nil
	}
	if f.ambiguousApplies[doc.Name] > 0 {
		f.ambiguousApplies[doc.Name]--
		f.ensureLocked(doc)
		return &engine.Report{
			Outcome: engine.OutcomeUnknown,
			Message: "engine stopped watching the operation",
		}, nil
	}

	entry := f.ensureLocked(doc)
	return &engine.Report{
		Outcome: engine.OutcomeSucceeded,
		ID:      entry.resource.ID,
		Outputs: entry.resource.Outputs,
	}, nil
}

func (f *DeploymentFixture) destroyResource(_ context.Context, doc plan.EngineResource) (*engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transientDestroyFailures[doc.Name] > 0 {
		f.transientDestroyFailures[doc.Name]--
		return &engine.Report{
			Outcome:   engine.OutcomeFailed,
			Message:   "provider rate limit hit",
			Transient: true,
		}, nil
	}

	f.removeLocked(doc.Name)
	if f.ambiguousDestroys[doc.Name] > 0 {
		f.ambiguousDestroys[doc.Name]--
		return &engine.Report{
			Outcome: engine.OutcomeUnknown,
			Message: "engine stopped watching the teardown",
		}, nil
	}
	return &engine.Report{Outcome: engine.OutcomeSucceeded}, nil
}

// ensureLocked creates the resource on first apply and returns the same
// entry on every later one. Binding documents additionally register the
// provider-side role binding they grant.
func (f *DeploymentFixture) ensureLocked(doc plan.EngineResource) *fixtureResource {
	if entry, ok := f.resources[doc.Name]; ok {
		return entry
	}

	prefix := kindPrefix(doc.Kind)
	f.serial[prefix]++
	entry := &fixtureResource{
		resource: provider.Resource{
			ID:   fmt.Sprintf("%s-%d", prefix, f.serial[prefix]),
			Name: doc.Name,
			Kind: doc.Kind,
		},
		settings: make(map[string]string),
	}
	if doc.Kind == plan.KindWorkload {
		endpoint := f.workloadEndpoints[doc.Name]
		if endpoint == "" {
			endpoint = fmt.Sprintf("http://%s.apps.example.test", doc.Name)
		}
		entry.resource.Outputs = map[string]string{"endpoint": endpoint}
	}
	f.resources[doc.Name] = entry

	if doc.Kind == plan.KindBinding && doc.Inputs["principal"] != "" {
		role, _ := doc.Config["role"].(string)
		f.bindings = append(f.bindings, &fixtureBinding{
			binding: provider.Binding{
				Principal: doc.Inputs["principal"],
				Role:      role,
				Scope:     doc.Inputs["scope"],
			},
			sourceName:  doc.Name,
			hiddenPolls: f.propagationLag,
		})
	}
	return entry
}

func (f *DeploymentFixture) removeLocked(name string) {
	delete(f.resources, name)
	kept := f.bindings[:0]
	for _, entry := range f.bindings {
		if entry.sourceName != name {
			kept = append(kept, entry)
		}
	}
	f.bindings = kept
}

func (f *DeploymentFixture) getResource(_ context.Context, kind, name string) (*provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.resources[name]
	if !ok || entry.resource.Kind != kind {
		return nil, nil
	}
	res := entry.resource
	return &res, nil
}

func (f *DeploymentFixture) listRoleBindings(_ context.Context, principal, scope string) ([]provider.Binding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var visible []provider.Binding
	for _, entry := range f.bindings {
		if entry.binding.Principal != principal || entry.binding.Scope != scope {
			continue
		}
		if entry.hiddenPolls > 0 {
			entry.hiddenPolls--
			continue
		}
		visible = append(visible, entry.binding)
	}
	return visible, nil
}

func (f *DeploymentFixture) createRoleBinding(_ context.Context, principal, role, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.bindings {
		if entry.binding.Principal == principal && entry.binding.Role == role && entry.binding.Scope == scope {
			return &provider.CLIError{
				Op:     "create-role-binding",
				Code:   provider.CodeAlreadyExists,
				Stderr: "role binding already exists",
			}
		}
	}
	f.bindings = append(f.bindings, &fixtureBinding{
		binding:     provider.Binding{Principal: principal, Role: role, Scope: scope},
		hiddenPolls: f.propagationLag,
	})
	return nil
}

func (f *DeploymentFixture) updateResource(_ context.Context, kind, name string, settings map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.resources[name]
	if !ok || entry.resource.Kind != kind {
		return &provider.CLIError{
			Op:     "update-resource",
			Code:   provider.CodeNotFound,
			Stderr: fmt.Sprintf("resource %s not found", name),
		}
	}
	for key, value := range settings {
		entry.settings[key] = value
	}
	return nil
}

func (f *DeploymentFixture) deleteResource(_ context.Context, _ string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(name)
	return nil
}

func kindPrefix(kind string) string {
	switch kind {
	case plan.KindStorage:
		return "st"
	case plan.KindIdentity:
		return "id"
	case plan.KindBinding:
		return "bnd"
	case plan.KindWorkload:
		return "wl"
	default:
		return "res"
	}
}
