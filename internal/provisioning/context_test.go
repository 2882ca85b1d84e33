package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstepd/lockstep/internal/config"
)

func TestNewContext_Defaults(t *testing.T) {
	cfg := &config.Config{
		Project:     "acme",
		Environment: "dev",
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    20 * time.Second,
			Multiplier:  1.5,
		},
	}

	ctx := NewContext(context.Background(), cfg, nil, nil, zerolog.Nop())

	assert.NotEmpty(t, ctx.RunID)
	require.NotNil(t, ctx.Result)
	assert.Equal(t, ctx.RunID, ctx.Result.RunID)
	assert.Equal(t, "acme", ctx.Result.Project)
	assert.NotNil(t, ctx.Observer)

	assert.Equal(t, 3, ctx.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, ctx.Retry.BaseDelay)
	assert.Equal(t, 20*time.Second, ctx.Retry.MaxDelay)
	assert.Equal(t, 1.5, ctx.Retry.Multiplier)

	// Environment-driven timeouts come back filled with defaults.
	assert.Greater(t, ctx.Timeouts.Propagation, time.Duration(0))
	assert.Greater(t, ctx.Timeouts.PollInterval, time.Duration(0))
}

func TestNewContext_DistinctRunIDs(t *testing.T) {
	cfg := &config.Config{Project: "acme", Environment: "dev"}
	first := NewContext(context.Background(), cfg, nil, nil, zerolog.Nop())
	second := NewContext(context.Background(), cfg, nil, nil, zerolog.Nop())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestContext_ResourceName(t *testing.T) {
	cfg := &config.Config{Project: "acme", Environment: "dev"}
	ctx := NewContext(context.Background(), cfg, nil, nil, zerolog.Nop())

	assert.Equal(t, "acme-dev-storage", ctx.ResourceName("storage"))
	assert.Equal(t, "acme-dev-binding", ctx.ResourceName("binding"))
}
