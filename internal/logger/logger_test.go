package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, closeLog, err := New(LogOption{Format: "json", LogDir: dir, Level: "debug"})
	require.NoError(t, err)
	log.Debug("compiled", zap.String("file", "vault.ts"))
	require.NoError(t, closeLog())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"compiled"`)
	assert.Contains(t, string(data), `"file":"vault.ts"`)
}

func TestNewLevelFilter(t *testing.T) {
	dir := t.TempDir()
	log, closeLog, err := New(LogOption{LogDir: dir, Level: "warn"})
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(LogOption{Level: "loud"})
	require.ErrorContains(t, err, "log level")
}
