package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
project: acme
environment: staging
engine:
  command: declarator
provider:
  command: cloudctl
state:
  path: .lockstep/state.json
retry:
  max_attempts: 3
  base_delay: 500ms
  max_delay: 10s
  multiplier: 1.5
resources:
  - name: storage
    kind: storage
    config:
      permissive_auth: true
  - name: identity
    kind: identity
  - name: binding
    kind: role-binding
    depends_on: [storage, identity]
    config:
      role: storage-contributor
      principal_from: identity
      scope_from: storage
  - name: workload
    kind: workload
    depends_on: [binding, storage]
    config:
      mount_from: storage
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockstep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Project)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "declarator", cfg.Engine.Command)
	assert.Equal(t, "cloudctl", cfg.Provider.Command)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)

	require.Len(t, cfg.Resources, 4)
	assert.Equal(t, []string{"storage", "identity"}, cfg.Resources[2].DependsOn)
	assert.Equal(t, true, cfg.Resources[0].Config["permissive_auth"])
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
project: acme
engine:
  command: declarator
provider:
  command: cloudctl
resources:
  - name: storage
    kind: storage
`))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, HardeningModeAuto, cfg.Hardening.Mode)
	assert.Equal(t, ".lockstep/state.json", cfg.State.Path)
	assert.Equal(t, "info", cfg.Telemetry.Level)
	assert.Equal(t, "auto", cfg.Telemetry.Format)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.True(t, cfg.HardenAutomatically())
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
project: acme
engin:
  command: declarator
provider:
  command: cloudctl
resources:
  - name: storage
    kind: storage
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config")
}

func TestLoadFile_ToleratesUnknownResourceConfigKeys(t *testing.T) {
	// The opaque config map passes through to the engine; arbitrary keys
	// must survive loading.
	cfg, err := LoadFile(writeConfig(t, `
project: acme
engine:
  command: declarator
provider:
  command: cloudctl
resources:
  - name: storage
    kind: storage
    config:
      replication: geo
      tier: premium
`))
	require.NoError(t, err)
	assert.Equal(t, "geo", cfg.Resources[0].Config["replication"])
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "project: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal yaml")
}
