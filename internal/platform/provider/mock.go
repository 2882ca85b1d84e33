package provider

import (
	"context"
	"sync"
)

// UpdateCall records one UpdateResource invocation.
type UpdateCall struct {
	Kind     string
	Name     string
	Settings map[string]string
}

// MockClient is a mock implementation of Client. Queries delegate to the
// function fields; mutations are additionally recorded for assertions.
type MockClient struct {
	GetResourceFunc       func(ctx context.Context, kind, name string) (*Resource, error)
	ListRoleBindingsFunc  func(ctx context.Context, principal, scope string) ([]Binding, error)
	CreateRoleBindingFunc func(ctx context.Context, principal, role, scope string) error
	UpdateResourceFunc    func(ctx context.Context, kind, name string, settings map[string]string) error
	DeleteResourceFunc    func(ctx context.Context, kind, name string) error

	mu       sync.Mutex
	creates  []Binding
	updates  []UpdateCall
	deletes  []string
	gets     int
	listings int
}

func (m *MockClient) GetResource(ctx context.Context, kind, name string) (*Resource, error) {
	m.mu.Lock()
	m.gets++
	m.mu.Unlock()
	return m.GetResourceFunc(ctx, kind, name)
}

func (m *MockClient) ListRoleBindings(ctx context.Context, principal, scope string) ([]Binding, error) {
	m.mu.Lock()
	m.listings++
	m.mu.Unlock()
	return m.ListRoleBindingsFunc(ctx, principal, scope)
}

func (m *MockClient) CreateRoleBinding(ctx context.Context, principal, role, scope string) error {
	m.mu.Lock()
	m.creates = append(m.creates, Binding{Principal: principal, Role: role, Scope: scope})
	m.mu.Unlock()
	return m.CreateRoleBindingFunc(ctx, principal, role, scope)
}

func (m *MockClient) UpdateResource(ctx context.Context, kind, name string, settings map[string]string) error {
	copied := make(map[string]string, len(settings))
	for key, value := range settings {
		copied[key] = value
	}
	m.mu.Lock()
	m.updates = append(m.updates, UpdateCall{Kind: kind, Name: name, Settings: copied})
	m.mu.Unlock()
	return m.UpdateResourceFunc(ctx, kind, name, settings)
}

func (m *MockClient) DeleteResource(ctx context.Context, kind, name string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, name)
	m.mu.Unlock()
	return m.DeleteResourceFunc(ctx, kind, name)
}

// CreatedBindings returns every binding handed to CreateRoleBinding.
func (m *MockClient) CreatedBindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Binding, len(m.creates))
	copy(out, m.creates)
	return out
}

// Updates returns every recorded UpdateResource call.
func (m *MockClient) Updates() []UpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UpdateCall, len(m.updates))
	copy(out, m.updates)
	return out
}

// Deletes returns the names handed to DeleteResource.
func (m *MockClient) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletes))
	copy(out, m.deletes)
	return out
}

// GetCount returns how many times GetResource was invoked.
func (m *MockClient) GetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// ListCount returns how many times ListRoleBindings was invoked.
func (m *MockClient) ListCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings
}
