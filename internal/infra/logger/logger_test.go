package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexiscuevases/ondesk/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ondesk.log")

	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info("action executed", "endpoint_id", "ep_1")
	log.Debug("hidden")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"action executed"`)
	assert.Contains(t, string(data), `"endpoint_id":"ep_1"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
