package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and a fixed environment and
// returns stdout and the command error.
func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	opts := &RootOptions{Getenv: func(k string) string { return env[k] }}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// shortPIConfig writes a PI override file that keeps runs fast.
func shortPIConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: 40\n"), 0o644))
	return path
}

// runHashOf extracts the run hash from a "PI <hash> controller=..." line.
func runHashOf(t *testing.T, line string) string {
	t.Helper()
	fields := strings.Fields(line)
	require.GreaterOrEqual(t, len(fields), 2, "summary line: %q", line)
	return fields[1]
}
