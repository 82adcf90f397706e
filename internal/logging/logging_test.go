package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	require.Equal(t, slog.LevelDebug, levelFromString("DEBUG"))
	require.Equal(t, slog.LevelWarn, levelFromString("warning"))
	require.Equal(t, slog.LevelError, levelFromString(" error "))
	require.Equal(t, slog.LevelInfo, levelFromString(""))
	require.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("submission saved", "format", "TikTok")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "submission saved", entry["msg"])
	require.Equal(t, "TikTok", entry["format"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "debug", "text")
	logger.Debug("exec ok", "duration_ms", 12)
	require.Contains(t, buf.String(), "msg=\"exec ok\"")
	require.Contains(t, buf.String(), "duration_ms=12")
}
