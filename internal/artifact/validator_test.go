package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writtenRun writes the fixture result under a fresh base and returns both.
func writtenRun(t *testing.T) (base, dir string) {
	t.Helper()
	base = t.TempDir()
	dir, err := newTestWriter().Write(base, fixtureResult(t))
	require.NoError(t, err)
	return base, dir
}

func TestValidateCleanRun(t *testing.T) {
	base, _ := writtenRun(t)

	report, err := Validate(base)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Runs)
	assert.True(t, report.OK())
	assert.Empty(t, report.Violations)
}

func TestValidateMissingRequiredFile(t *testing.T) {
	for _, name := range RequiredFiles {
		t.Run(name, func(t *testing.T) {
			base, dir := writtenRun(t)
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			report, err := Validate(base)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Runs)
			require.Len(t, report.Violations, 1)
			assert.Equal(t, dir, report.Violations[0].RunDir)
			assert.Equal(t, "missing "+name, report.Violations[0].Reason)
		})
	}
}

func TestValidateRunJSONMissingKey(t *testing.T) {
	for _, key := range RequiredRunKeys {
		t.Run(key, func(t *testing.T) {
			base, dir := writtenRun(t)
			path := filepath.Join(dir, RunFile)

			var doc map[string]any
			require.NoError(t, readJSON(path, &doc))
			delete(doc, key)
			require.NoError(t, writeCanonical(dir, RunFile, doc))

			report, err := Validate(base)
			require.NoError(t, err)
			require.Len(t, report.Violations, 1)
			assert.Equal(t, "run.json missing key "+key, report.Violations[0].Reason)
		})
	}
}

func TestValidateBrokenFiles(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		reason string
	}{
		{"unparsable run.json", RunFile, "{not json", "run.json unparsable"},
		{"empty metrics", MetricsFile, "", "metrics.csv is empty"},
		{"numeric first row", MetricsFile, "0,1.5\n1,2.5\n", "metrics.csv has no header"},
		{"blank header cell", MetricsFile, "t,,v\n", "metrics.csv has no header"},
		{"bad npy", "alpha.npy", "garbage", "alpha.npy: npy"},
		{"unparsable meta", MetaFile, "[", "meta.json unparsable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, dir := writtenRun(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.body), 0o644))

			report, err := Validate(base)
			require.NoError(t, err)
			require.Len(t, report.Violations, 1)
			assert.Contains(t, report.Violations[0].Reason, tt.reason)
		})
	}
}

func TestValidateTruncatedNPYData(t *testing.T) {
	base, dir := writtenRun(t)
	path := filepath.Join(dir, "alpha.npy")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-8))

	report, err := Validate(base)
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Contains(t, report.Violations[0].Reason, "alpha.npy")
}

func TestValidateSkipsStagingDirs(t *testing.T) {
	base, _ := writtenRun(t)
	stage := filepath.Join(base, "PI", ".tmp-abcdef0-x")
	require.NoError(t, os.MkdirAll(stage, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stage, RunFile), []byte("{}"), 0o644))

	report, err := Validate(base)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Runs)
	assert.Empty(t, report.Violations)
}

func TestValidateEmptyAndMissingRoot(t *testing.T) {
	report, err := Validate(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, report.Runs)
	assert.True(t, report.OK())

	_, err = Validate(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestValidateManyRuns(t *testing.T) {
	base := t.TempDir()
	w := newTestWriter()
	for _, seed := range []int64{1, 2, 3} {
		res := fixtureResult(t)
		res.Seed = seed
		res.RunHash = res.RunHash[:6] + string(rune('0'+seed))
		_, err := w.Write(base, res)
		require.NoError(t, err)
	}

	report, err := Validate(base)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Runs)
	assert.True(t, report.OK())
}
