package testing

import (
	"github.com/stretchr/testify/mock"

	"github.com/lockstepd/lockstep/internal/provisioning"
)

// MockPhase is a mock implementation of the provisioning.Phase interface.
// It is used by orchestration tests that assert phase sequencing and error
// propagation rather than phase behavior.
type MockPhase struct {
	mock.Mock
	name string
}

// NewMockPhase creates a mock phase reporting the given name.
func NewMockPhase(name string) *MockPhase {
	return &MockPhase{name: name}
}

// Name returns the phase name.
func (m *MockPhase) Name() string {
	return m.name
}

// Provision records the call and returns the configured error.
func (m *MockPhase) Provision(pctx *provisioning.Context) error {
	args := m.Called(pctx)
	return args.Error(0)
}

// Succeeds configures the phase to accept any context and succeed.
func (m *MockPhase) Succeeds() *MockPhase {
	m.On("Provision", mock.Anything).Return(nil)
	return m
}

// FailsWith configures the phase to fail every call with err.
func (m *MockPhase) FailsWith(err error) *MockPhase {
	m.On("Provision", mock.Anything).Return(err)
	return m
}
