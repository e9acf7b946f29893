package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pfch/internal/testutil"
)

// createTestStore opens a fresh store with a frozen clock and sequential ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	ids := testutil.NewSequenceIDs("row")
	s, err := Open(path,
		WithClock(testutil.NewFixedClock(testutil.Epoch)),
		WithIDGenerator(ids.Next),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun returns a minimal run row.
func createTestRun(testID, runHash string, headline float64) Run {
	return Run{
		TestID:        testID,
		RunHash:       runHash,
		Controller:    "open_loop",
		Seed:          1337,
		Dir:           filepath.Join("artifacts", testID, runHash),
		Headline:      "err_final",
		HeadlineValue: &headline,
		Scalars:       map[string]float64{"err_final": headline},
	}
}
