package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/pfch/internal/artifact"
	"github.com/roach88/pfch/internal/canonical"
	"github.com/roach88/pfch/internal/sim"
)

// ErrNotFound is returned when no indexed run matches.
var ErrNotFound = errors.New("run not indexed")

// Run is one row of the runs table.
type Run struct {
	ID            string             `json:"id"`
	TestID        string             `json:"test_id"`
	RunHash       string             `json:"run_hash"`
	Controller    string             `json:"controller"`
	Seed          int64              `json:"seed"`
	Dir           string             `json:"dir"`
	Headline      string             `json:"headline"`
	HeadlineValue *float64           `json:"headline_value"`
	Unstable      bool               `json:"unstable"`
	Scalars       map[string]float64 `json:"scalars"`
	IndexedUTC    string             `json:"indexed_utc"`
	Seq           int64              `json:"seq"`
}

// FromResult builds the index row for a run written to dir. Non-finite
// scalars are left out.
func FromResult(res *sim.Result, dir string) Run {
	scalars := make(map[string]float64, len(res.Scalars))
	for k, v := range res.Scalars {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			scalars[k] = v
		}
	}
	r := Run{
		TestID:     res.TestID,
		RunHash:    res.RunHash,
		Controller: res.Controller,
		Seed:       res.Seed,
		Dir:        dir,
		Headline:   sim.Headline(res.TestID),
		Unstable:   res.Unstable,
		Scalars:    scalars,
	}
	if v, ok := scalars[r.Headline]; ok {
		r.HeadlineValue = &v
	}
	return r
}

// UpsertRun inserts run, or updates the row with the same (test_id,
// run_hash). The id and seq of an existing row are kept. The stored row is
// returned.
func (s *Store) UpsertRun(ctx context.Context, run Run) (Run, error) {
	scalarsJSON, err := canonical.Marshal(nonNilScalars(run.Scalars))
	if err != nil {
		return Run{}, fmt.Errorf("upsert run: marshal scalars: %w", err)
	}
	var headline sql.NullFloat64
	if run.HeadlineValue != nil {
		headline = sql.NullFloat64{Float64: *run.HeadlineValue, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, test_id, run_hash, controller, seed, dir, headline, headline_value, unstable, scalars, indexed_utc, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(test_id, run_hash) DO UPDATE SET
			controller = excluded.controller,
			seed = excluded.seed,
			dir = excluded.dir,
			headline = excluded.headline,
			headline_value = excluded.headline_value,
			unstable = excluded.unstable,
			scalars = excluded.scalars,
			indexed_utc = excluded.indexed_utc
	`,
		s.newID(),
		run.TestID,
		run.RunHash,
		run.Controller,
		run.Seed,
		run.Dir,
		run.Headline,
		headline,
		run.Unstable,
		string(scalarsJSON),
		s.clock.Now().UTC().Format(artifact.TimeFormat),
	)
	if err != nil {
		return Run{}, fmt.Errorf("upsert run: %w", err)
	}
	return s.GetRun(ctx, run.TestID, run.RunHash)
}

// GetRun returns the indexed run of (testID, runHash), or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, testID, runHash string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, test_id, run_hash, controller, seed, dir, headline, headline_value, unstable, scalars, indexed_utc, seq
		FROM runs
		WHERE test_id = ? AND run_hash = ?
	`, testID, runHash)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s/%s: %w", testID, runHash, ErrNotFound)
	}
	return run, err
}

// ListFilter narrows ListRuns. Zero values match everything.
type ListFilter struct {
	TestID string
	Limit  int
}

// ListRuns returns indexed runs ordered by seq ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, f ListFilter) ([]Run, error) {
	query := `
		SELECT id, test_id, run_hash, controller, seed, dir, headline, headline_value, unstable, scalars, indexed_utc, seq
		FROM runs
		WHERE (? = '' OR test_id = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC`
	args := []any{f.TestID, f.TestID}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run         Run
		headline    sql.NullFloat64
		scalarsJSON string
	)
	err := sc.Scan(
		&run.ID,
		&run.TestID,
		&run.RunHash,
		&run.Controller,
		&run.Seed,
		&run.Dir,
		&run.Headline,
		&headline,
		&run.Unstable,
		&scalarsJSON,
		&run.IndexedUTC,
		&run.Seq,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if headline.Valid {
		v := headline.Float64
		run.HeadlineValue = &v
	}
	run.Scalars = map[string]float64{}
	if err := json.Unmarshal([]byte(scalarsJSON), &run.Scalars); err != nil {
		return Run{}, fmt.Errorf("scan run: unmarshal scalars: %w", err)
	}
	return run, nil
}

func nonNilScalars(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
