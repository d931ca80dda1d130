package logfx_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/rkit/logfx"
)

func TestParseLevelKnownNames(t *testing.T) {
	cases := map[string]slog.Level{
		"TRACE": logfx.LevelTrace,
		"debug": logfx.LevelDebug,
		"Info":  logfx.LevelInfo,
		"WARN":  logfx.LevelWarn,
		"ERROR": logfx.LevelError,
		"FATAL": logfx.LevelFatal,
		"PANIC": logfx.LevelPanic,
	}

	for name, want := range cases {
		l, err := logfx.ParseLevel(name, true)
		require.NoError(t, err)
		require.Equal(t, want, *l)
	}
}

func TestParseLevelWithOffset(t *testing.T) {
	l, err := logfx.ParseLevel("INFO+2", true)
	require.NoError(t, err)
	require.Equal(t, logfx.LevelInfo+2, *l)
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := logfx.ParseLevel("bogus", true)
	require.ErrorIs(t, err, logfx.ErrUnknownErrorLevel)
}

func TestParseLevelEmptyStringDefaultsWhenNotRequired(t *testing.T) {
	l, err := logfx.ParseLevel("", false)
	require.NoError(t, err)
	require.Equal(t, slog.Level(0), *l)
}
