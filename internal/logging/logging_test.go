package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Console: &buf})
	require.NoError(t, err)
	l.Debug().Msg("hidden")
	l.Info().Str("key", `P\S1`).Msg("fetch started")
	require.NoError(t, l.Close())

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "fetch started")
	require.Contains(t, out, "key=")
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "taskcards.log")
	l, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)
	l.Debug().Int("results", 3).Msg("fetch done")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"results":3`)
	require.Contains(t, string(data), `"message":"fetch done"`)
}

func TestBadLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}
