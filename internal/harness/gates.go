package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/pfch/internal/sim"
)

// GateOutcome is the verdict of one gate.
type GateOutcome struct {
	Gate   Gate    `json:"-"`
	Name   string  `json:"gate"`
	Passed bool    `json:"passed"`
	Actual float64 `json:"actual"`
	Detail string  `json:"detail,omitempty"`
}

// GateError is returned when a gate fails.
// It includes the expected and actual outcome to help debug the failure.
type GateError struct {
	Scenario string
	Gate     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *GateError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "gate failed: %s: %s\n", e.Scenario, e.Gate)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateGates checks every gate against subject and baselines.
func EvaluateGates(gates []Gate, subject *sim.Result, baselines []*sim.Result) []GateOutcome {
	out := make([]GateOutcome, 0, len(gates))
	for _, g := range gates {
		out = append(out, evaluateGate(g, subject, baselines))
	}
	return out
}

func evaluateGate(g Gate, subject *sim.Result, baselines []*sim.Result) GateOutcome {
	o := GateOutcome{Gate: g, Name: g.String()}
	v, ok := subject.Scalar(g.Metric)
	if !ok {
		o.Actual = math.NaN()
		o.Detail = fmt.Sprintf("%s did not produce %s", subject.Controller, g.Metric)
		return o
	}
	o.Actual = v
	if math.IsNaN(v) {
		o.Detail = g.Metric + " is NaN"
		return o
	}

	switch g.Kind() {
	case GateMin:
		o.Passed = v >= *g.Min
	case GateMax:
		o.Passed = v <= *g.Max
	case GateRange:
		o.Passed = v >= g.Range[0] && v <= g.Range[1]
	case GateBeats:
		return evaluateBeats(o, g, v, baselines)
	default:
		o.Detail = "invalid gate"
		return o
	}
	if !o.Passed {
		o.Detail = fmt.Sprintf("%s = %g", g.Metric, v)
	}
	return o
}

// evaluateBeats passes when the subject's advantage over every baseline is
// at least the margin (strictly positive for a zero margin).
func evaluateBeats(o GateOutcome, g Gate, v float64, baselines []*sim.Result) GateOutcome {
	margin := *g.Beats
	o.Passed = true
	var notes []string
	for _, b := range baselines {
		bv, ok := b.Scalar(g.Metric)
		if !ok || math.IsNaN(bv) {
			o.Passed = false
			notes = append(notes, fmt.Sprintf("%s: no %s", b.Controller, g.Metric))
			continue
		}
		adv := advantage(g, v, bv)
		won := adv >= margin
		if margin == 0 {
			won = adv > 0
		}
		if !won {
			o.Passed = false
			notes = append(notes, fmt.Sprintf("%s: advantage %g < %g", b.Controller, adv, margin))
		}
	}
	o.Detail = strings.Join(notes, "; ")
	return o
}

func advantage(g Gate, subject, baseline float64) float64 {
	switch g.Direction {
	case DirectionHigher:
		return subject - baseline
	case DirectionLower:
		return baseline - subject
	case DirectionCloserTo:
		return math.Abs(baseline-*g.Target) - math.Abs(subject-*g.Target)
	}
	return math.NaN()
}
