package provisioning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstepd/lockstep/internal/grants"
	"github.com/lockstepd/lockstep/internal/platform/provider"
)

func TestStepError_MessageNamesResourceStepAndKind(t *testing.T) {
	err := &StepError{
		Kind:     KindTransientProvider,
		Resource: "storage",
		Step:     "apply",
		Err:      errors.New("connection reset"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "storage")
	assert.Contains(t, msg, "apply")
	assert.Contains(t, msg, string(KindTransientProvider))
	assert.Contains(t, msg, "connection reset")
}

func TestStepError_WithoutResource(t *testing.T) {
	err := &StepError{Kind: KindVerification, Step: "verify", Err: errors.New("2 checks failed")}
	assert.Equal(t, "step verify failed (verification-failure): 2 checks failed", err.Error())
}

func TestStepError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := &StepError{Kind: KindConfiguration, Resource: "binding", Step: "validate", Err: inner}

	assert.ErrorIs(t, err, inner)

	var step *StepError
	wrapped := fmt.Errorf("apply phase failed: %w", err)
	require.ErrorAs(t, wrapped, &step)
	assert.Equal(t, KindConfiguration, step.Kind)
	assert.Equal(t, "binding", step.Resource)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "step error",
			err:  &StepError{Kind: KindPropagationTimeout, Resource: "binding", Step: "propagation-wait"},
			want: KindPropagationTimeout,
		},
		{
			name: "wrapped step error",
			err:  fmt.Errorf("configure phase failed: %w", &StepError{Kind: KindTransientProvider, Step: "apply"}),
			want: KindTransientProvider,
		},
		{
			name: "bare propagation timeout from the waiter",
			err: &grants.PropagationTimeoutError{
				Binding: provider.Binding{Principal: "id-1", Role: "object-writer", Scope: "st-1"},
				Waited:  4 * time.Minute,
			},
			want: KindPropagationTimeout,
		},
		{
			name: "plain error has no kind",
			err:  errors.New("boom"),
			want: "",
		},
		{
			name: "nil error has no kind",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
