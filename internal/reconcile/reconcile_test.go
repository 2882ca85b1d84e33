package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/platform/provider"
)

type getResult struct {
	resource *provider.Resource
	err      error
}

// fakeReader returns scripted results for successive GetResource calls and
// repeats the last entry once the script runs out.
type fakeReader struct {
	mu      sync.Mutex
	script  []getResult
	calls   int
	lastArg string
}

func (f *fakeReader) GetResource(ctx context.Context, kind, name string) (*provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastArg = kind + "/" + name
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	result := f.script[idx]
	return result.resource, result.err
}

func (f *fakeReader) ListRoleBindings(ctx context.Context, principal, scope string) ([]provider.Binding, error) {
	return nil, nil
}

func (f *fakeReader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testTimeouts(window, interval time.Duration) config.Timeouts {
	return config.Timeouts{Reconcile: window, PollInterval: interval}
}

func TestResolve_ImportsResourceFoundImmediately(t *testing.T) {
	reader := &fakeReader{script: []getResult{
		{resource: &provider.Resource{ID: "bnd-1", Name: "acme-dev-binding", Kind: "binding"}},
	}}
	r := NewReconciler(reader, testTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	resource, err := r.Resolve(context.Background(), "binding", "acme-dev-binding")
	require.NoError(t, err)
	require.NotNil(t, resource)
	assert.Equal(t, "bnd-1", resource.ID)
	assert.Equal(t, 1, reader.callCount())
	assert.Equal(t, "binding/acme-dev-binding", reader.lastArg)
}

func TestResolve_ImportsResourceAppearingLate(t *testing.T) {
	reader := &fakeReader{script: []getResult{
		{},
		{},
		{resource: &provider.Resource{
			ID:      "st-9",
			Name:    "acme-dev-storage",
			Kind:    "storage",
			Outputs: map[string]string{"bucket_url": "s3://acme-dev-storage"},
		}},
	}}
	r := NewReconciler(reader, testTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	resource, err := r.Resolve(context.Background(), "storage", "acme-dev-storage")
	require.NoError(t, err)
	require.NotNil(t, resource)
	assert.Equal(t, "st-9", resource.ID)
	assert.Equal(t, "s3://acme-dev-storage", resource.Outputs["bucket_url"])
	assert.Equal(t, 3, reader.callCount())
}

func TestResolve_WindowExpiresWithoutResource(t *testing.T) {
	reader := &fakeReader{script: []getResult{{}}}
	r := NewReconciler(reader, testTimeouts(40*time.Millisecond, 5*time.Millisecond), zerolog.Nop(), nil)

	resource, err := r.Resolve(context.Background(), "binding", "acme-dev-binding")
	require.Error(t, err)
	assert.Nil(t, resource)
	assert.True(t, IsUnresolved(err))

	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "binding", unresolved.Kind)
	assert.Equal(t, "acme-dev-binding", unresolved.Name)
	assert.Contains(t, err.Error(), "not observed by provider")
}

func TestResolve_QueryErrorsDoNotEndTheWindow(t *testing.T) {
	reader := &fakeReader{script: []getResult{
		{err: errors.New("provider unavailable")},
		{err: errors.New("provider unavailable")},
		{resource: &provider.Resource{ID: "res-3", Name: "acme-dev-identity", Kind: "identity"}},
	}}
	r := NewReconciler(reader, testTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	resource, err := r.Resolve(context.Background(), "identity", "acme-dev-identity")
	require.NoError(t, err)
	assert.Equal(t, "res-3", resource.ID)
	assert.Equal(t, 3, reader.callCount())
}

func TestResolve_CallerCancellationIsNotUnresolved(t *testing.T) {
	reader := &fakeReader{script: []getResult{{}}}
	r := NewReconciler(reader, testTimeouts(10*time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	resource, err := r.Resolve(ctx, "binding", "acme-dev-binding")
	require.Error(t, err)
	assert.Nil(t, resource)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUnresolved(err))
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation should end polling before the window")
}

func TestIsUnresolved(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unresolved error",
			err:  &UnresolvedError{Kind: "binding", Name: "b", Window: time.Minute},
			want: true,
		},
		{
			name: "wrapped unresolved error",
			err:  errors.Join(errors.New("outer"), &UnresolvedError{Kind: "binding", Name: "b"}),
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnresolved(tt.err))
		})
	}
}
