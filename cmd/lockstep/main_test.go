package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lockstepd/lockstep/internal/provisioning"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "configuration error",
			err:  &provisioning.StepError{Kind: provisioning.KindConfiguration, Step: "validate", Err: errors.New("bad spec")},
			want: 1,
		},
		{
			name: "retries exhausted",
			err:  &provisioning.StepError{Kind: provisioning.KindTransientProvider, Resource: "storage", Step: "apply", Err: errors.New("rate limited")},
			want: 2,
		},
		{
			name: "propagation timeout",
			err:  &provisioning.StepError{Kind: provisioning.KindPropagationTimeout, Resource: "binding", Step: "propagation-wait", Err: errors.New("never effective")},
			want: 3,
		},
		{
			name: "verification failure",
			err:  &provisioning.StepError{Kind: provisioning.KindVerification, Resource: "workload", Step: "verify", Err: errors.New("health check failed")},
			want: 4,
		},
		{
			name: "unclassified error",
			err:  errors.New("something else"),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitCode_SeesThroughWrapping(t *testing.T) {
	inner := &provisioning.StepError{Kind: provisioning.KindPropagationTimeout, Resource: "binding", Step: "propagation-wait", Err: errors.New("timeout")}
	wrapped := fmt.Errorf("configure phase failed: %w", inner)

	assert.Equal(t, 3, exitCode(wrapped))
}
