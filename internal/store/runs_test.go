package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/sim"
)

func TestUpsertRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := createTestRun("PI", "585baf2", 0.0125)
	in.Unstable = true
	got, err := s.UpsertRun(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "row-0001", got.ID)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "2025-01-01T00:00:00Z", got.IndexedUTC)
	assert.Equal(t, in.TestID, got.TestID)
	assert.Equal(t, in.RunHash, got.RunHash)
	assert.Equal(t, in.Controller, got.Controller)
	assert.Equal(t, in.Seed, got.Seed)
	assert.Equal(t, in.Dir, got.Dir)
	assert.True(t, got.Unstable)
	require.NotNil(t, got.HeadlineValue)
	assert.Equal(t, 0.0125, *got.HeadlineValue)
	assert.Equal(t, in.Scalars, got.Scalars)
}

func TestUpsertRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertRun(ctx, createTestRun("PI", "585baf2", 0.5))
	require.NoError(t, err)
	second, err := s.UpsertRun(ctx, createTestRun("PI", "585baf2", 0.25))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "id must survive re-indexing")
	assert.Equal(t, first.Seq, second.Seq, "seq must survive re-indexing")
	assert.Equal(t, 0.25, *second.HeadlineValue)

	runs, err := s.ListRuns(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestUpsertRun_NullHeadline(t *testing.T) {
	s := createTestStore(t)
	run := createTestRun("TN", "0000001", 0)
	run.HeadlineValue = nil
	run.Scalars = nil

	got, err := s.UpsertRun(context.Background(), run)
	require.NoError(t, err)
	assert.Nil(t, got.HeadlineValue)
	assert.Empty(t, got.Scalars)
}

func TestListRuns_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, r := range []Run{
		createTestRun("PI", "aaaaaaa", 1),
		createTestRun("MT01", "bbbbbbb", 2),
		createTestRun("PI", "ccccccc", 3),
	} {
		_, err := s.UpsertRun(ctx, r)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"aaaaaaa", "bbbbbbb", "ccccccc"}, hashes(all))

	pi, err := s.ListRuns(ctx, ListFilter{TestID: "PI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaa", "ccccccc"}, hashes(pi))

	limited, err := s.ListRuns(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaa"}, hashes(limited))

	none, err := s.ListRuns(ctx, ListFilter{TestID: "BG01"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "PI", "fffffff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFromResult(t *testing.T) {
	cfg := config.DefaultPI()
	ctrl, err := control.BuildPI(control.Spec{Kind: control.KindOpenLoop}, cfg)
	require.NoError(t, err)
	res, err := sim.RunPI(cfg, ctrl, 7)
	require.NoError(t, err)
	res.Scalars["broken"] = math.Inf(1)

	run := FromResult(res, "/tmp/x")
	assert.Equal(t, "PI", run.TestID)
	assert.Equal(t, res.RunHash, run.RunHash)
	assert.Equal(t, "open_loop", run.Controller)
	assert.Equal(t, "err_final", run.Headline)
	require.NotNil(t, run.HeadlineValue)
	assert.Equal(t, res.Scalars["err_final"], *run.HeadlineValue)
	assert.NotContains(t, run.Scalars, "broken")

	s := createTestStore(t)
	stored, err := s.UpsertRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, run.Scalars, stored.Scalars)
}

func TestRecordGate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.UpsertRun(ctx, createTestRun("PI", "585baf2", 0.01))
	require.NoError(t, err)

	require.NoError(t, s.RecordGate(ctx, GateResult{RunID: run.ID, Scenario: "pi", Gate: "err_final max 0.05", Passed: true}))
	require.NoError(t, s.RecordGate(ctx, GateResult{RunID: run.ID, Scenario: "pi", Gate: "err_final beats", Passed: false, Detail: "margin 0.001"}))
	require.NoError(t, s.RecordGate(ctx, GateResult{RunID: run.ID, Scenario: "pi", Gate: "err_final beats", Passed: true, Detail: "margin 0.2"}))

	gates, err := s.GatesForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, gates, 2)
	assert.Equal(t, "err_final max 0.05", gates[0].Gate)
	assert.True(t, gates[1].Passed)
	assert.Equal(t, "margin 0.2", gates[1].Detail)

	err = s.RecordGate(ctx, GateResult{RunID: "missing", Scenario: "pi", Gate: "x"})
	assert.Error(t, err)
}

func hashes(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.RunHash
	}
	return out
}
