package engine

import (
	"context"
	"sync"

	"github.com/lockstepd/lockstep/internal/plan"
)

// MockApplier is a mock implementation of Applier. Behavior comes from
// the function fields; every handed document is recorded in call order.
type MockApplier struct {
	ApplyFunc   func(ctx context.Context, doc plan.EngineResource) (*Report, error)
	DestroyFunc func(ctx context.Context, doc plan.EngineResource) (*Report, error)

	mu        sync.Mutex
	applied   []plan.EngineResource
	destroyed []plan.EngineResource
}

func (m *MockApplier) Apply(ctx context.Context, doc plan.EngineResource) (*Report, error) {
	m.mu.Lock()
	m.applied = append(m.applied, doc)
	m.mu.Unlock()
	return m.ApplyFunc(ctx, doc)
}

func (m *MockApplier) Destroy(ctx context.Context, doc plan.EngineResource) (*Report, error) {
	m.mu.Lock()
	m.destroyed = append(m.destroyed, doc)
	m.mu.Unlock()
	return m.DestroyFunc(ctx, doc)
}

// Applied returns every document handed to Apply so far.
func (m *MockApplier) Applied() []plan.EngineResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]plan.EngineResource, len(m.applied))
	copy(out, m.applied)
	return out
}

// Destroyed returns every document handed to Destroy so far.
func (m *MockApplier) Destroyed() []plan.EngineResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]plan.EngineResource, len(m.destroyed))
	copy(out, m.destroyed)
	return out
}

// ApplyCount returns how many times Apply was invoked for the named
// document, or in total when name is empty.
func (m *MockApplier) ApplyCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		return len(m.applied)
	}
	count := 0
	for _, doc := range m.applied {
		if doc.Name == name {
			count++
		}
	}
	return count
}
