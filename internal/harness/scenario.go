package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
)

// Scenario is one acceptance experiment: a subject controller, the
// baselines it is compared against and the gates it must pass.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// TestID selects the experiment class and its preset config.
	TestID string `yaml:"test_id"`

	// Seed is shared by the subject and every baseline.
	Seed int64 `yaml:"seed"`

	// Config holds overrides applied on top of the preset.
	Config map[string]any `yaml:"config,omitempty"`

	// Subject is the controller under test.
	Subject control.Spec `yaml:"subject"`

	// Baselines are the controllers beats gates compare against.
	Baselines []control.Spec `yaml:"baselines,omitempty"`

	// Gates are evaluated in order against the subject's scalars.
	Gates []Gate `yaml:"gates"`
}

// Gate is one pass/fail condition on a subject scalar. Exactly one of Min,
// Max, Range or Beats is set.
type Gate struct {
	Metric string `yaml:"metric"`

	Min   *float64  `yaml:"min,omitempty"`
	Max   *float64  `yaml:"max,omitempty"`
	Range []float64 `yaml:"range,omitempty"`

	// Beats is the margin by which the subject must beat every baseline.
	// Zero means strictly better.
	Beats     *float64 `yaml:"beats,omitempty"`
	Direction string   `yaml:"direction,omitempty"`
	Target    *float64 `yaml:"target,omitempty"`
}

// Gate kinds.
const (
	GateMin   = "min"
	GateMax   = "max"
	GateRange = "range"
	GateBeats = "beats"
)

// Beats directions.
const (
	DirectionHigher   = "higher"
	DirectionLower    = "lower"
	DirectionCloserTo = "closer_to"
)

// Kind returns which condition the gate carries, or "" when it carries none
// or more than one.
func (g Gate) Kind() string {
	var kinds []string
	if g.Min != nil {
		kinds = append(kinds, GateMin)
	}
	if g.Max != nil {
		kinds = append(kinds, GateMax)
	}
	if g.Range != nil {
		kinds = append(kinds, GateRange)
	}
	if g.Beats != nil {
		kinds = append(kinds, GateBeats)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// String renders the gate for reports, e.g. "peak_retention >= 0.9".
func (g Gate) String() string {
	switch g.Kind() {
	case GateMin:
		return fmt.Sprintf("%s >= %g", g.Metric, *g.Min)
	case GateMax:
		return fmt.Sprintf("%s <= %g", g.Metric, *g.Max)
	case GateRange:
		return fmt.Sprintf("%s in [%g, %g]", g.Metric, g.Range[0], g.Range[1])
	case GateBeats:
		s := fmt.Sprintf("%s beats baselines by %g (%s", g.Metric, *g.Beats, g.Direction)
		if g.Target != nil {
			s += fmt.Sprintf(" %g", *g.Target)
		}
		return s + ")"
	}
	return g.Metric + " (invalid gate)"
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "gate:" vs "gates:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	seen := map[string]string{}
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", name, s.Name, prev)
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if _, err := config.Default(s.TestID); err != nil {
		return fmt.Errorf("test_id: %w", err)
	}

	if s.Subject.Kind == "" {
		return fmt.Errorf("subject.kind is required")
	}
	for i, b := range s.Baselines {
		if b.Kind == "" {
			return fmt.Errorf("baselines[%d]: kind is required", i)
		}
	}

	if len(s.Gates) == 0 {
		return fmt.Errorf("gates list is required and must be non-empty")
	}

	for i, gate := range s.Gates {
		if err := validateGate(i, gate, len(s.Baselines)); err != nil {
			return err
		}
	}

	return nil
}

// validateGate validates a single gate based on its kind.
func validateGate(index int, g Gate, baselines int) error {
	if g.Metric == "" {
		return fmt.Errorf("gates[%d]: metric is required", index)
	}

	switch g.Kind() {
	case GateMin, GateMax:
	case GateRange:
		if len(g.Range) != 2 || g.Range[0] > g.Range[1] {
			return fmt.Errorf("gates[%d]: range must be [lo, hi] with lo <= hi", index)
		}
	case GateBeats:
		if *g.Beats < 0 {
			return fmt.Errorf("gates[%d]: beats margin must be non-negative", index)
		}
		if baselines == 0 {
			return fmt.Errorf("gates[%d]: beats needs at least one baseline", index)
		}
		switch g.Direction {
		case DirectionHigher, DirectionLower:
		case DirectionCloserTo:
			if g.Target == nil {
				return fmt.Errorf("gates[%d]: closer_to needs a target", index)
			}
		default:
			return fmt.Errorf("gates[%d]: direction must be higher, lower or closer_to, got %q", index, g.Direction)
		}
	default:
		return fmt.Errorf("gates[%d]: exactly one of min, max, range or beats is required", index)
	}

	return nil
}
