package logfx_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/rkit/logfx"
)

func TestNewLoggerJSONMode(t *testing.T) {
	var buf bytes.Buffer

	logger := logfx.NewLogger(
		logfx.WithWriter(&buf),
		logfx.WithPrettyMode(false),
	)

	logger.Info("hello", "key", "value")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "hello", decoded["msg"])
	require.Equal(t, "value", decoded["key"])
}

func TestNewLoggerPrettyMode(t *testing.T) {
	var buf bytes.Buffer

	logger := logfx.NewLogger(
		logfx.WithWriter(&buf),
		logfx.WithPrettyMode(true),
	)

	logger.Info("hello there")

	require.True(t, strings.Contains(buf.String(), "hello there"))
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer

	cfg := &logfx.Config{Level: "NOT-A-LEVEL"} //nolint:exhaustruct

	logger := logfx.NewLogger(
		logfx.WithWriter(&buf),
		logfx.WithConfig(cfg),
	)

	require.Error(t, logger.InnerHandler.InitError)
}
