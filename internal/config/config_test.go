package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[engine]
worker_count = 3
frame_limit_hz = 144
max_delta_seconds = 0.1
phase_budget = "5ms"
profiling = true

[logging]
level = "debug"
format = "json"

[scripting]
dir = "assets/scripts"
pipeline = "assets/pipeline.yaml"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.WorkerCount)
	assert.Equal(t, 144, cfg.Engine.FrameLimitHz)
	assert.Equal(t, 0.1, cfg.Engine.MaxDeltaSeconds)
	assert.Equal(t, 5*time.Millisecond, cfg.Engine.PhaseBudget)
	assert.True(t, cfg.Engine.Profiling)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "assets/scripts", cfg.Scripting.Dir)
	assert.Equal(t, "assets/pipeline.yaml", cfg.Scripting.Pipeline)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
[engine]
frame_limit_hz = 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Engine.WorkerCount)
	assert.Equal(t, 30, cfg.Engine.FrameLimitHz)
	assert.Equal(t, 0.25, cfg.Engine.MaxDeltaSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[engine]
frame_limit_hz = -5
`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, `
[engine]
max_delta_seconds = 0.0
`)
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
