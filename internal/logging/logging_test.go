package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("service started on %s", "localhost:8000")
	logger.Debug("debug detail %d", 42)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service started on localhost:8000")
	assert.Contains(t, string(data), "debug detail 42")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Options{Level: "chatty", File: path})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("should be suppressed")
	logger.Info("should appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be suppressed")
	assert.Contains(t, string(data), "should appear")
}

func TestNewWithoutFile(t *testing.T) {
	logger, err := New(Options{Level: "info"})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}
