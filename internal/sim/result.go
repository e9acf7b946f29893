package sim

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/pfch/internal/canonical"
	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/kernel"
)

// Result is everything a run produced. It is the only input the artifact
// writer needs.
type Result struct {
	TestID     string
	Controller string
	Seed       int64
	Config     config.Config
	RunHash    string

	Scalars   map[string]float64
	Series    []Series
	Metrics   Table
	Fields    []Field
	Frames    *Frames
	Telemetry []map[string]float64

	// Unstable is set when the field left its norm cap or went non-finite.
	// The run still completes and Instability says what happened first.
	Unstable    bool
	Instability string
}

// Series is a named per-step time series.
type Series struct {
	Name   string
	Values []float64
}

// Table is the content of metrics.csv.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Field is a named final array. Exactly one of Real and Complex is set.
type Field struct {
	Name    string
	Shape   []int
	Real    []float64
	Complex []complex128
}

// Frames holds strided snapshots of a complex field, flattened frame-major.
type Frames struct {
	Shape []int // shape of one frame
	Steps []int
	Data  []complex128
}

// Scalar returns a named scalar and whether it exists.
func (r *Result) Scalar(name string) (float64, bool) {
	v, ok := r.Scalars[name]
	return v, ok
}

// SeriesByName returns the named series, or nil.
func (r *Result) SeriesByName(name string) []float64 {
	for _, s := range r.Series {
		if s.Name == name {
			return s.Values
		}
	}
	return nil
}

// Option configures a driver run.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	telemetry   bool
	frameStride int
	fields      bool
}

// WithLogger routes driver logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTelemetry enables per-step telemetry records where the driver
// supports them.
func WithTelemetry(enabled bool) Option {
	return func(o *options) { o.telemetry = enabled }
}

// WithFrameStride enables field snapshots every stride steps. Zero disables
// frames.
func WithFrameStride(stride int) Option {
	return func(o *options) {
		if stride >= 0 {
			o.frameStride = stride
		}
	}
}

// WithFields controls whether final field arrays are attached to the
// Result. They are attached by default.
func WithFields(enabled bool) Option {
	return func(o *options) { o.fields = enabled }
}

// DefaultFrameStride is the snapshot stride used when frames are requested
// without an explicit stride.
const DefaultFrameStride = 2

func applyOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		fields: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newResult fills the identity fields and the run hash.
func newResult(cfg config.Config, controller string, seed int64) (*Result, error) {
	hash, err := canonical.RunHash(cfg, controller, seed)
	if err != nil {
		return nil, fmt.Errorf("hashing %s run: %w", cfg.TestID(), err)
	}
	return &Result{
		TestID:     cfg.TestID(),
		Controller: controller,
		Seed:       seed,
		Config:     cfg,
		RunHash:    hash,
		Scalars:    map[string]float64{},
	}, nil
}

func (r *Result) addSeries(name string, values []float64) {
	r.Series = append(r.Series, Series{Name: name, Values: values})
}

func (r *Result) addSummary(s kernel.Summary) {
	r.Scalars["peak0"] = s.Peak0
	r.Scalars["peakT"] = s.PeakT
	r.Scalars["width0"] = s.Width0
	r.Scalars["widthT"] = s.WidthT
	r.Scalars["peak_retention"] = s.PeakRetention
	r.Scalars["width_drift_pct"] = s.WidthDriftPct
	r.Scalars["max_norm"] = s.MaxNorm
}

// stability tracks the first instability of a run. Once the field goes
// non-finite it is frozen and the driver repeats its last finite
// measurement for the remaining rows.
type stability struct {
	normCap float64
	logger  *slog.Logger
	testID  string

	unstable bool
	reason   string
	frozen   bool
}

func newStability(testID string, normCap float64, logger *slog.Logger) *stability {
	return &stability{testID: testID, normCap: normCap, logger: logger}
}

// observe records the post-step state. It returns false when the new state
// must be discarded because it is not finite.
func (s *stability) observe(t int, finite bool, norm float64) bool {
	if !finite || math.IsNaN(norm) || math.IsInf(norm, 0) {
		s.mark(t, "non-finite field")
		s.frozen = true
		return false
	}
	if s.normCap > 0 && norm > s.normCap {
		s.mark(t, fmt.Sprintf("norm %.6g exceeds norm_cap %.6g", norm, s.normCap))
	}
	return true
}

func (s *stability) mark(t int, what string) {
	if s.unstable {
		return
	}
	s.unstable = true
	s.reason = fmt.Sprintf("step %d: %s", t, what)
	s.logger.Warn("run unstable",
		"test_id", s.testID,
		"step", t,
		"reason", what,
	)
}

func (s *stability) apply(r *Result) {
	r.Unstable = s.unstable
	r.Instability = s.reason
}

func logStart(logger *slog.Logger, r *Result, steps int) {
	logger.Info("run starting",
		"test_id", r.TestID,
		"controller", r.Controller,
		"seed", r.Seed,
		"run_hash", r.RunHash,
		"steps", steps,
	)
}

func logDone(logger *slog.Logger, r *Result) {
	headline := Headline(r.TestID)
	logger.Info("run complete",
		"test_id", r.TestID,
		"run_hash", r.RunHash,
		headline, r.Scalars[headline],
		"unstable", r.Unstable,
	)
}
