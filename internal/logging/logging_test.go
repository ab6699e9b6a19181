package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/config"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()

	logger, err := New(cfg, &buf)
	require.NoError(t, err)

	logger.Warn("budget read failed")
	require.NoError(t, logger.Sync())

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "budget read failed", rec["msg"])
	assert.Equal(t, "placesguard", rec["logger"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.LogLevel = "error"

	logger, err := New(cfg, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("dropped too")
	assert.Empty(t, buf.String())
}

func TestNew_InvalidLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "loud"

	_, err := New(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_TeesToRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "placesguard.log")

	logger, err := New(cfg, &buf)
	require.NoError(t, err)

	logger.Info("kill switch activated")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kill switch activated")
	assert.Contains(t, buf.String(), "kill switch activated")
}
