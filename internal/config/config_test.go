package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.RPCPort)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.ActionDefaultTimeout)
	assert.Equal(t, 5, cfg.ActionMaxRetries)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Tracer.Enabled)

	// 2 x 60s completions + 6 x 30s attempts + 5 x 2s backoff
	assert.Equal(t, 310*time.Second, cfg.LockTTL)
	assert.Equal(t, cfg.LockTTL, cfg.LockWait)
	assert.Equal(t, cfg.LockTTL, Default().LockTTL)
}

func TestLockTTLFollowsActionSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACTION_DEFAULT_TIMEOUT_MS", "1000")
	t.Setenv("ACTION_MAX_RETRIES", "2")
	t.Setenv("LLM_TIMEOUT_MS", "5000")
	t.Setenv("LOCK_WAIT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 17*time.Second, cfg.LockTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWait)
	assert.Equal(t, cfg.RunBudget(), cfg.LockTTL)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "ondesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: 9000
history_limit: 10
action_default_timeout: 5s
action_blocklist: [ep_refund]
logger:
  level: debug
  format: json
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("ACTION_MAX_RETRIES", "2")
	t.Setenv("LOCK_TTL_MS", "1500")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.ActionDefaultTimeout)
	assert.Equal(t, []string{"ep_refund"}, cfg.ActionBlocklist)
	assert.Equal(t, 2, cfg.ActionMaxRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.LockTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.LockWait)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Tracer.Enabled)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_URL=redis://localhost:6379/0\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REDIS_URL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: [oops"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestBlocklistFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACTION_BLOCKLIST", " ep_a, ,ep_b ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ep_a", "ep_b"}, cfg.ActionBlocklist)
}
