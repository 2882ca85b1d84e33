package grants

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

type listResult struct {
	bindings []provider.Binding
	err      error
}

// fakeLister returns scripted results for successive ListRoleBindings calls
// and repeats the last entry once the script runs out.
type fakeLister struct {
	mu     sync.Mutex
	script []listResult
	calls  int
}

func (f *fakeLister) GetResource(ctx context.Context, kind, name string) (*provider.Resource, error) {
	return nil, nil
}

func (f *fakeLister) ListRoleBindings(ctx context.Context, principal, scope string) ([]provider.Binding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	result := f.script[idx]
	return result.bindings, result.err
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testBinding = provider.Binding{
	Principal: "acme-dev-identity",
	Role:      "object-writer",
	Scope:     "acme-dev-storage",
}

func waiterTimeouts(timeout, interval time.Duration) config.Timeouts {
	return config.Timeouts{Propagation: timeout, PollInterval: interval}
}

func TestWaitEffective_VisibleImmediately(t *testing.T) {
	lister := &fakeLister{script: []listResult{
		{bindings: []provider.Binding{testBinding}},
	}}
	w := NewWaiter(lister, waiterTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	err := w.WaitEffective(context.Background(), testBinding)
	require.NoError(t, err)
	assert.Equal(t, 1, lister.callCount())
}

func TestWaitEffective_VisibleAfterPolls(t *testing.T) {
	lister := &fakeLister{script: []listResult{
		{bindings: nil},
		{bindings: nil},
		{bindings: []provider.Binding{testBinding}},
	}}
	w := NewWaiter(lister, waiterTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	err := w.WaitEffective(context.Background(), testBinding)
	require.NoError(t, err)
	assert.Equal(t, 3, lister.callCount())
}

func TestWaitEffective_RequiresExactTriple(t *testing.T) {
	// Same principal and scope with a different role must not satisfy the
	// wait.
	almost := testBinding
	almost.Role = "object-reader"
	lister := &fakeLister{script: []listResult{
		{bindings: []provider.Binding{almost}},
	}}
	w := NewWaiter(lister, waiterTimeouts(40*time.Millisecond, 5*time.Millisecond), zerolog.Nop(), nil)

	err := w.WaitEffective(context.Background(), testBinding)
	require.Error(t, err)
	assert.True(t, IsPropagationTimeout(err))
}

func TestWaitEffective_Timeout(t *testing.T) {
	lister := &fakeLister{script: []listResult{{bindings: nil}}}
	w := NewWaiter(lister, waiterTimeouts(40*time.Millisecond, 5*time.Millisecond), zerolog.Nop(), nil)

	err := w.WaitEffective(context.Background(), testBinding)
	require.Error(t, err)

	var timeout *PropagationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, testBinding, timeout.Binding)
	assert.Contains(t, err.Error(), "not effective after")
	assert.Contains(t, err.Error(), "object-writer")
	assert.GreaterOrEqual(t, lister.callCount(), 2, "should have polled more than once")
}

func TestWaitEffective_ListErrorsAreRetried(t *testing.T) {
	lister := &fakeLister{script: []listResult{
		{err: errors.New("rate limited")},
		{err: errors.New("rate limited")},
		{bindings: []provider.Binding{testBinding}},
	}}
	w := NewWaiter(lister, waiterTimeouts(time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	err := w.WaitEffective(context.Background(), testBinding)
	require.NoError(t, err)
	assert.Equal(t, 3, lister.callCount())
}

func TestWaitEffective_CallerCancellation(t *testing.T) {
	lister := &fakeLister{script: []listResult{{bindings: nil}}}
	w := NewWaiter(lister, waiterTimeouts(10*time.Second, 5*time.Millisecond), zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := w.WaitEffective(ctx, testBinding)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsPropagationTimeout(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestContainsBinding(t *testing.T) {
	tests := []struct {
		name   string
		listed []provider.Binding
		want   bool
	}{
		{
			name:   "empty list",
			listed: nil,
			want:   false,
		},
		{
			name:   "exact match",
			listed: []provider.Binding{testBinding},
			want:   true,
		},
		{
			name: "match among others",
			listed: []provider.Binding{
				{Principal: "other", Role: "viewer", Scope: "elsewhere"},
				testBinding,
			},
			want: true,
		},
		{
			name: "different scope",
			listed: []provider.Binding{
				{Principal: testBinding.Principal, Role: testBinding.Role, Scope: "acme-prod-storage"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsBinding(tt.listed, testBinding))
		})
	}
}

func TestIsPropagationTimeout(t *testing.T) {
	assert.True(t, IsPropagationTimeout(&PropagationTimeoutError{Binding: testBinding}))
	assert.False(t, IsPropagationTimeout(errors.New("boom")))
	assert.False(t, IsPropagationTimeout(nil))
	assert.False(t, IsPropagationTimeout(context.DeadlineExceeded))
}
