package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewLogger_DebugFlagAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")

	log, closeFn, err := newLogger(&console, Options{Level: "warn", Debug: true, File: path})
	require.NoError(t, err)

	log.Debug("uploading", "key", "a/b.jpg")
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "key=a/b.jpg")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=uploading")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var console bytes.Buffer

	log, _, err := newLogger(&console, Options{Format: "json"})
	require.NoError(t, err)

	log.Info("done", "uploaded", 2)
	assert.Contains(t, console.String(), `"uploaded":2`)

	_, _, err = newLogger(&console, Options{Format: "xml"})
	assert.Error(t, err)
}

func TestWithMinLevel(t *testing.T) {
	var console bytes.Buffer
	base := slog.New(slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelDebug}))

	quiet := WithMinLevel(base, slog.LevelWarn).With("run", 1)
	quiet.Info("hidden")
	quiet.Warn("shown")

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "run=1")
}

func TestWithMinLevel_KeepsLogFileComplete(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")

	log, closeFn, err := newLogger(&console, Options{Level: "info", File: path})
	require.NoError(t, err)

	quiet := WithMinLevel(log, slog.LevelWarn).With("component", "reconciler")
	quiet.Info("Uploaded", "key", "a")
	quiet.Debug("Already present", "key", "b")
	quiet.Warn("Retrying upload", "key", "c")
	require.NoError(t, closeFn())

	out := console.String()
	assert.NotContains(t, out, "msg=Uploaded")
	assert.NotContains(t, out, "Already present")
	assert.Contains(t, out, "Retrying upload")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	file := string(data)
	assert.Contains(t, file, "msg=Uploaded component=reconciler key=a")
	assert.Contains(t, file, `msg="Already present" component=reconciler key=b`)
	assert.Contains(t, file, `msg="Retrying upload" component=reconciler key=c`)
}

func TestNewLogger_FileKeepsDebugBelowConsoleLevel(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")

	log, closeFn, err := newLogger(&console, Options{Level: "warn", File: path})
	require.NoError(t, err)

	log.Info("Scan complete", "files", 3)
	require.NoError(t, closeFn())

	assert.Empty(t, console.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="Scan complete" files=3`)
}
