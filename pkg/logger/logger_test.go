package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Output: &buf})

	Error("Cache: failed to save", errors.New("disk full"), "path", "shows.json")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Cache: failed to save", line["msg"])
	require.Equal(t, "disk full", line["error"])
	require.Equal(t, "shows.json", line["path"])
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Format: "json", Output: &buf})

	Info("hidden")
	Debug("hidden")
	require.Zero(t, buf.Len())

	Warn("shown")
	require.Contains(t, buf.String(), "shown")
}
