package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/twstock-daily/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"trace": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewStdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(&buf, config.LogConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Warn("shown", "code", "2330")
	require.NoError(t, closer.Close())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown code=2330")
}

func TestNewWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "twstock.log")

	logger, closer := newLogger(&buf, config.LogConfig{
		Level:     "debug",
		File:      path,
		MaxSizeMB: 1,
	})
	logger.Debug("to both", "n", 1)
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=\"to both\" n=1")
	assert.Equal(t, buf.String(), string(b))
}
