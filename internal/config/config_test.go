package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sessiond/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sess:", cfg.KeyPrefix)
	assert.Equal(t, 24*time.Hour, cfg.MaxAge)
	assert.True(t, cfg.Concurrency.Enabled)
	assert.Equal(t, 3, cfg.Concurrency.MaxSessionsPerUser)
	assert.Equal(t, 60*time.Second, cfg.Monitor.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.AlertCooldown)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  address: redis.internal:6380
  db: 2
key_prefix: "app:sess:"
max_age: 2h
concurrency:
  enabled: true
  max_sessions_per_user: 5
monitor:
  cleanup_interval: 90s
  session_threshold: 500
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Store.Address)
	assert.Equal(t, 2, cfg.Store.DB)
	assert.Equal(t, "app:sess:", cfg.KeyPrefix)
	assert.Equal(t, 2*time.Hour, cfg.MaxAge)
	assert.Equal(t, 5, cfg.Concurrency.MaxSessionsPerUser)
	assert.Equal(t, 90*time.Second, cfg.Monitor.CleanupInterval)
	assert.Equal(t, 500, cfg.Monitor.SessionThreshold)

	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Monitor.MetricsInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key_prefix: \"file:\"\n"), 0o644))

	t.Setenv("SESSIOND_KEY_PREFIX", "env:")
	t.Setenv("SESSIOND_MAX_SESSIONS_PER_USER", "7")
	t.Setenv("SESSIOND_MAX_AGE", "45m")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env:", cfg.KeyPrefix)
	assert.Equal(t, 7, cfg.Concurrency.MaxSessionsPerUser)
	assert.Equal(t, 45*time.Minute, cfg.MaxAge)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("SESSIOND_MAX_SESSIONS_PER_USER", "0")

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	// A zero interval would panic time.NewTicker in the monitor schedules.
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  cleanup_interval: 0s\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  metrics_interval: 0s\n"), 0o644))

	_, err = config.Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
