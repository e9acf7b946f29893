package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pfch/internal/artifact"
)

const passingScenario = `name: pi_short
test_id: PI
seed: 1337
config:
  steps: 40
subject:
  kind: tessaris_alpha_hold
baselines:
  - kind: open_loop
gates:
  - metric: err_final
    min: 0
  - metric: alpha_final
    range: [0.05, 5]
`

const failingScenario = `name: pi_impossible
test_id: PI
seed: 1337
config:
  steps: 40
subject:
  kind: tessaris_alpha_hold
gates:
  - metric: err_final
    max: -1
`

func scenarioDir(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestAcceptPasses(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pi.yaml": passingScenario})

	out, err := execute(t, nil, "accept", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ pi_short (PI ")
	assert.Contains(t, out, "    PASS err_final >= 0\n")
	assert.Contains(t, out, "1/1 scenario(s) passed")
}

func TestAcceptFailureExitsOne(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"a.yaml": passingScenario, "b.yaml": failingScenario})

	out, err := execute(t, nil, "accept", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ pi_impossible")
	assert.Contains(t, out, "    FAIL err_final <= -1: err_final = ")
	assert.Contains(t, out, "1/2 scenario(s) passed")
}

func TestAcceptJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"b.yaml": failingScenario})

	out, err := execute(t, nil, "--format", "json", "accept", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   AcceptResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeGateFailed, resp.Error.Code)
	assert.False(t, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	require.Len(t, resp.Data.Scenarios[0].Gates, 1)
	assert.NotNil(t, resp.Data.Scenarios[0].Gates[0].Actual)
	assert.Len(t, resp.Data.Scenarios[0].RunHash, 7)
}

func TestAcceptWritesAndIndexes(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pi.yaml": passingScenario})
	base := t.TempDir()
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, nil, "accept", dir, "--write", "--baselines", "--out", base, "--db", db)
	require.NoError(t, err)

	report, err := artifact.Validate(base)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Runs, "subject and one baseline")
	assert.True(t, report.OK(), "%v", report.Violations)

	out, err := execute(t, nil, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "tessaris_alpha_hold")
	assert.Contains(t, out, "open_loop")
}

func TestAcceptBadScenarios(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"bad.yaml": "name: x\n"})
	out, err := execute(t, nil, "accept", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]")

	out, err = execute(t, nil, "accept", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: no scenarios found")
}
