package store

import (
	"context"
	"fmt"
)

// GateResult is one evaluated acceptance gate for an indexed run.
type GateResult struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Gate     string `json:"gate"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
	Seq      int64  `json:"seq"`
}

// RecordGate stores the outcome of one gate. Re-recording the same
// (run, scenario, gate) replaces the verdict and detail.
func (s *Store) RecordGate(ctx context.Context, g GateResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gate_results (id, run_id, scenario, gate, passed, detail, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM gate_results))
		ON CONFLICT(run_id, scenario, gate) DO UPDATE SET
			passed = excluded.passed,
			detail = excluded.detail
	`,
		s.newID(),
		g.RunID,
		g.Scenario,
		g.Gate,
		g.Passed,
		g.Detail,
	)
	if err != nil {
		return fmt.Errorf("record gate: %w", err)
	}
	return nil
}

// GatesForRun returns the gate outcomes of runID in recording order.
func (s *Store) GatesForRun(ctx context.Context, runID string) ([]GateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, scenario, gate, passed, detail, seq
		FROM gate_results
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query gates: %w", err)
	}
	defer rows.Close()

	gates := []GateResult{}
	for rows.Next() {
		var g GateResult
		if err := rows.Scan(&g.ID, &g.RunID, &g.Scenario, &g.Gate, &g.Passed, &g.Detail, &g.Seq); err != nil {
			return nil, fmt.Errorf("scan gate: %w", err)
		}
		gates = append(gates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gates: %w", err)
	}
	return gates, nil
}
