package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFansOutToStderrAndFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "pfch.log")

	l, err := New(slog.LevelInfo, &stderr, path)
	require.NoError(t, err)
	l.Info("run complete", "test_id", "PI", "err_final", 0.01)
	require.NoError(t, l.Close())

	assert.Contains(t, stderr.String(), "msg=\"run complete\"")
	assert.Contains(t, stderr.String(), "test_id=PI")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "run complete", rec["msg"])
	assert.Equal(t, "PI", rec["test_id"])
	assert.Equal(t, 0.01, rec["err_final"])
}

func TestNewRespectsLevel(t *testing.T) {
	var stderr bytes.Buffer
	l, err := New(slog.LevelInfo, &stderr, "")
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	assert.Empty(t, stderr.String())

	l.SetLevel(LevelFor(true))
	l.Debug("shown")
	assert.Contains(t, stderr.String(), "shown")
}

func TestNewAppendsToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfch.log")
	for i := 0; i < 2; i++ {
		l, err := New(slog.LevelInfo, nil, path)
		require.NoError(t, err)
		l.Info("line")
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestNewBadLogFile(t *testing.T) {
	_, err := New(slog.LevelInfo, nil, filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestCloseWithoutFile(t *testing.T) {
	l, err := New(slog.LevelInfo, nil, "")
	require.NoError(t, err)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
	assert.Equal(t, slog.LevelInfo, LevelFor(false))
}
