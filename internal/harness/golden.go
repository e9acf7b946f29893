package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pfch/internal/canonical"
)

// Snapshot is the deterministic part of an Outcome: which controllers ran
// and how every gate came out. Measured values are left out so that
// snapshots survive floating-point noise across platforms.
type Snapshot struct {
	Scenario  string         `json:"scenario"`
	TestID    string         `json:"test_id"`
	Seed      int64          `json:"seed"`
	Subject   string         `json:"subject"`
	Baselines []string       `json:"baselines"`
	Gates     []GateSnapshot `json:"gates"`
	Passed    bool           `json:"passed"`
}

// GateSnapshot is one gate verdict in a Snapshot.
type GateSnapshot struct {
	Gate   string `json:"gate"`
	Passed bool   `json:"passed"`
}

// Snapshot extracts the deterministic summary of o.
func (o *Outcome) Snapshot() Snapshot {
	s := Snapshot{
		Scenario:  o.Scenario,
		TestID:    o.TestID,
		Baselines: make([]string, 0, len(o.Baselines)),
		Gates:     make([]GateSnapshot, 0, len(o.Gates)),
		Passed:    o.Passed(),
	}
	if o.Subject != nil {
		s.Seed = o.Subject.Seed
		s.Subject = o.Subject.Controller
	}
	for _, b := range o.Baselines {
		s.Baselines = append(s.Baselines, b.Controller)
	}
	for _, g := range o.Gates {
		s.Gates = append(s.Gates, GateSnapshot{Gate: g.Name, Passed: g.Passed})
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Outcome, error) {
	t.Helper()

	outcome, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return outcome, AssertGolden(t, scenario.Name, outcome)
}

// AssertGolden compares an outcome's snapshot against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, outcome *Outcome) error {
	t.Helper()

	data, err := canonical.Marshal(outcome.Snapshot())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
