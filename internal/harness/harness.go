package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/pfch/internal/artifact"
	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/sim"
	"github.com/roach88/pfch/internal/store"
)

// Harness runs acceptance scenarios. The zero value is not usable; create
// one with New.
type Harness struct {
	logger   *slog.Logger
	writer   *artifact.Writer
	baseDir  string
	index    *store.Store
	simOpts  []sim.Option
	baseline bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for scenario progress.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithArtifacts writes the subject run of every scenario under baseDir.
// Baseline runs are written too when WithBaselineArtifacts is set.
func WithArtifacts(w *artifact.Writer, baseDir string) Option {
	return func(h *Harness) {
		h.writer = w
		h.baseDir = baseDir
	}
}

// WithBaselineArtifacts also writes baseline runs when artifacts are enabled.
func WithBaselineArtifacts(enabled bool) Option {
	return func(h *Harness) {
		h.baseline = enabled
	}
}

// WithIndex records written runs and their gate outcomes in st.
func WithIndex(st *store.Store) Option {
	return func(h *Harness) {
		h.index = st
	}
}

// WithSimOptions passes options through to every simulation.
func WithSimOptions(opts ...sim.Option) Option {
	return func(h *Harness) {
		h.simOpts = append(h.simOpts, opts...)
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Outcome is the result of running one scenario.
type Outcome struct {
	Scenario  string
	TestID    string
	Subject   *sim.Result
	Baselines []*sim.Result
	Gates     []GateOutcome

	// Dir is where the subject run was written, if artifacts are enabled.
	Dir string
}

// Passed reports whether every gate passed.
func (o *Outcome) Passed() bool {
	for _, g := range o.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// Failures returns one GateError per failed gate.
func (o *Outcome) Failures() []*GateError {
	var out []*GateError
	for _, g := range o.Gates {
		if g.Passed {
			continue
		}
		actual := fmt.Sprintf("%s = %g", g.Gate.Metric, g.Actual)
		if g.Detail != "" {
			actual += " (" + g.Detail + ")"
		}
		out = append(out, &GateError{
			Scenario: o.Scenario,
			Gate:     g.Name,
			Expected: g.Name,
			Actual:   actual,
		})
	}
	return out
}

// Err joins the failures into one error, or returns nil.
func (o *Outcome) Err() error {
	fails := o.Failures()
	if len(fails) == 0 {
		return nil
	}
	msgs := make([]string, len(fails))
	for i, f := range fails {
		msgs[i] = strings.TrimSpace(f.Error())
	}
	return fmt.Errorf("%d of %d gates failed:\n%s", len(fails), len(o.Gates), strings.Join(msgs, "\n"))
}

// Run executes a scenario with default options.
func Run(s *Scenario) (*Outcome, error) {
	return New().Run(context.Background(), s)
}

// Run resolves the scenario's config, runs the subject and every baseline
// with the scenario seed and evaluates the gates. An error means the
// scenario could not be run at all; gate failures are reported in the
// Outcome.
//
// Execution flow:
// 1. Preset config for the test id, with scenario overrides applied
// 2. Subject run, then baseline runs in declaration order
// 3. Gate evaluation against the subject's scalars
// 4. Optional artifact writing and indexing
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Outcome, error) {
	cfg, err := resolveConfig(s)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Scenario: s.Name, TestID: s.TestID}
	out.Subject, err = h.simulate(cfg, s.Subject, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: subject %s: %w", s.Name, s.Subject.Kind, err)
	}
	for _, b := range s.Baselines {
		res, err := h.simulate(cfg, b, s.Seed)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: baseline %s: %w", s.Name, b.Kind, err)
		}
		out.Baselines = append(out.Baselines, res)
	}

	out.Gates = EvaluateGates(s.Gates, out.Subject, out.Baselines)

	if err := h.persist(ctx, s, out); err != nil {
		return nil, err
	}

	h.logger.Info("scenario completed",
		"scenario", s.Name,
		"test_id", s.TestID,
		"run_hash", out.Subject.RunHash,
		"passed", out.Passed(),
	)
	return out, nil
}

// RunAll runs every scenario in order and stops at the first one that
// cannot be run. Gate failures do not stop the sweep.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o, err := h.Run(ctx, s)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func resolveConfig(s *Scenario) (config.Config, error) {
	cfg, err := config.Default(s.TestID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	if len(s.Config) == 0 {
		return cfg, nil
	}
	cfg, err = config.Override(cfg, s.Config)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return cfg, nil
}

func (h *Harness) simulate(cfg config.Config, spec control.Spec, seed int64) (*sim.Result, error) {
	opts := append([]sim.Option{sim.WithLogger(h.logger)}, h.simOpts...)
	return sim.Run(cfg, spec, seed, opts...)
}

func (h *Harness) persist(ctx context.Context, s *Scenario, out *Outcome) error {
	if h.writer == nil {
		return nil
	}
	results := []*sim.Result{out.Subject}
	if h.baseline {
		results = append(results, out.Baselines...)
	}
	for i, res := range results {
		dir, err := h.writer.Write(h.baseDir, res)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		if i == 0 {
			out.Dir = dir
		}
		if h.index == nil {
			continue
		}
		row, err := h.index.UpsertRun(ctx, store.FromResult(res, dir))
		if err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		if i != 0 {
			continue
		}
		for _, g := range out.Gates {
			if err := h.index.RecordGate(ctx, store.GateResult{
				RunID:    row.ID,
				Scenario: s.Name,
				Gate:     g.Name,
				Passed:   g.Passed,
				Detail:   g.Detail,
			}); err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
		}
	}
	return nil
}
