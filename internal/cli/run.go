package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pfch/internal/artifact"
	"github.com/roach88/pfch/internal/config"
	"github.com/roach88/pfch/internal/control"
	"github.com/roach88/pfch/internal/sim"
	"github.com/roach88/pfch/internal/store"
)

// DefaultBaseDir is where run directories are written.
const DefaultBaseDir = "artifacts"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Controller  string
	Params      map[string]string
	Seed        int64
	ConfigPath  string
	Out         string
	Database    string
	NoArtifacts bool
	All         bool

	// Writer overrides the artifact writer (for testing).
	Writer *artifact.Writer
}

// RunSummary is what the run command reports for one run.
type RunSummary struct {
	TestID        string   `json:"test_id"`
	RunHash       string   `json:"run_hash"`
	Controller    string   `json:"controller"`
	Seed          int64    `json:"seed"`
	Headline      string   `json:"headline"`
	HeadlineValue *float64 `json:"headline_value"`
	Unstable      bool     `json:"unstable"`
	Instability   string   `json:"instability,omitempty"`
	Dir           string   `json:"dir,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [test_id]",
		Short: "Run one experiment and write its artifacts",
		Long: `Run one experiment with a controller and write its run directory.

The config is the experiment preset, optionally overridden by a YAML file.
The controller defaults to the experiment's closed-loop controller.
With --all every experiment runs concurrently on its preset.

Environment:
  PFCH_WRITE_ARTIFACTS=0  do not write a run directory
  PFCH_EMIT_TELEMETRY=0   omit telemetry.jsonl
  PFCH_EMIT_FIELD=0       omit field arrays and frames

Example:
  pfch run PI
  pfch run MT01 --controller open_loop --seed 7 --out ./artifacts
  pfch run BG01 --param kp=4 --db ./runs.db
  pfch run --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return runAll(opts, cmd)
			}
			return runOne(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Controller, "controller", "", "controller kind (default: the closed-loop controller)")
	cmd.Flags().StringToStringVar(&opts.Params, "param", nil, "controller parameter override, name=value")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1337, "RNG seed")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML config overrides")
	cmd.Flags().StringVar(&opts.Out, "out", DefaultBaseDir, "base directory for run directories")
	cmd.Flags().StringVar(&opts.Database, "db", "", "index the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.NoArtifacts, "no-artifacts", false, "do not write a run directory")
	cmd.Flags().BoolVar(&opts.All, "all", false, "run every experiment on its preset")

	return cmd
}

func runOne(opts *RunOptions, testID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	cfg, err := config.Resolve(testID, opts.ConfigPath)
	if err != nil {
		if config.IsConfigError(err) {
			return fail(formatter, ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
		}
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "failed to read config", err)
	}

	spec, err := opts.spec(testID)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeUnknownController, "invalid --param", err)
	}

	env := opts.env()
	formatter.VerboseLog("running %s with %s, seed %d", testID, spec.Kind, opts.Seed)
	res, err := sim.Run(cfg, spec, opts.Seed, append(env.SimOptions(), sim.WithLogger(logger.Logger))...)
	if err != nil {
		return simFailure(formatter, err)
	}

	summary, err := opts.persist(cmdContext(cmd), logger.Logger, env, []*sim.Result{res})
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), "failed to save run", err)
	}
	return outputRuns(formatter, summary...)
}

// runAll runs every experiment concurrently. Each driver owns its RNG and
// config so runs share no state; artifacts are written afterwards in
// experiment order.
func runAll(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Controller != "" || opts.ConfigPath != "" || len(opts.Params) > 0 {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "--all runs presets with default controllers; drop --controller, --param and --config", nil)
	}
	logger, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	env := opts.env()
	results := make([]*sim.Result, len(config.TestIDs))
	g, ctx := errgroup.WithContext(cmdContext(cmd))
	for i, id := range config.TestIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg, err := config.Default(id)
			if err != nil {
				return err
			}
			res, err := sim.Run(cfg, control.Spec{Kind: control.DefaultKind(id)}, opts.Seed,
				append(env.SimOptions(), sim.WithLogger(logger.With("test_id", id)))...)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return simFailure(formatter, err)
	}

	summaries, err := opts.persist(cmdContext(cmd), logger.Logger, env, results)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), "failed to save runs", err)
	}
	return outputRuns(formatter, summaries...)
}

func (opts *RunOptions) env() Env {
	if opts.NoArtifacts {
		return Env{}
	}
	return LoadEnv(opts.getenv)
}

func (opts *RunOptions) spec(testID string) (control.Spec, error) {
	spec := control.Spec{Kind: opts.Controller}
	if spec.Kind == "" {
		spec.Kind = control.DefaultKind(testID)
	}
	if len(opts.Params) == 0 {
		return spec, nil
	}
	spec.Params = make(map[string]float64, len(opts.Params))
	for k, v := range opts.Params {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return spec, fmt.Errorf("%s=%q is not a number", k, v)
		}
		spec.Params[k] = f
	}
	return spec, nil
}

// persistError tags a failure with the CLI error code it maps to.
type persistError struct {
	code string
	err  error
}

func (e *persistError) Error() string { return e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }

func errorCode(err error) string {
	var pe *persistError
	if errors.As(err, &pe) {
		return pe.code
	}
	return ErrCodeGeneric
}

// persist writes and indexes results as the flags ask and returns their
// summaries.
func (opts *RunOptions) persist(ctx context.Context, logger *slog.Logger, env Env, results []*sim.Result) ([]RunSummary, error) {
	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return nil, &persistError{code: ErrCodeIndexFailed, err: err}
		}
		defer st.Close()
	}
	w := opts.Writer
	if w == nil {
		w = artifact.NewWriter()
	}
	w.Logger = logger

	summaries := make([]RunSummary, 0, len(results))
	for _, res := range results {
		var dir string
		if env.WriteArtifacts {
			var err error
			dir, err = w.Write(opts.Out, res)
			if err != nil {
				return nil, &persistError{code: ErrCodeWriteFailed, err: err}
			}
		}
		if st != nil {
			if _, err := st.UpsertRun(ctx, store.FromResult(res, dir)); err != nil {
				return nil, &persistError{code: ErrCodeIndexFailed, err: err}
			}
		}
		summaries = append(summaries, summarize(res, dir))
	}
	return summaries, nil
}

func summarize(res *sim.Result, dir string) RunSummary {
	s := RunSummary{
		TestID:      res.TestID,
		RunHash:     res.RunHash,
		Controller:  res.Controller,
		Seed:        res.Seed,
		Headline:    sim.Headline(res.TestID),
		Unstable:    res.Unstable,
		Instability: res.Instability,
		Dir:         dir,
	}
	if v, ok := res.Scalar(s.Headline); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		s.HeadlineValue = &v
	}
	return s
}

// Line renders the summary as one line of text output.
func (s RunSummary) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s controller=%s seed=%d", s.TestID, s.RunHash, s.Controller, s.Seed)
	if s.HeadlineValue != nil {
		fmt.Fprintf(&b, " %s=%s", s.Headline, strconv.FormatFloat(*s.HeadlineValue, 'g', -1, 64))
	}
	if s.Unstable {
		fmt.Fprintf(&b, " UNSTABLE(%s)", s.Instability)
	}
	if s.Dir != "" {
		fmt.Fprintf(&b, " dir=%s", s.Dir)
	}
	return b.String()
}

func outputRuns(formatter *OutputFormatter, summaries ...RunSummary) error {
	if formatter.IsJSON() {
		if len(summaries) == 1 {
			return formatter.Success(summaries[0])
		}
		return formatter.Success(summaries)
	}
	for _, s := range summaries {
		fmt.Fprintln(formatter.Writer, s.Line())
	}
	return nil
}

func simFailure(formatter *OutputFormatter, err error) error {
	switch {
	case config.IsConfigError(err):
		return fail(formatter, ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
	case control.IsControlError(err):
		return fail(formatter, ExitCommandError, ErrCodeUnknownController, "invalid controller", err)
	}
	return fail(formatter, ExitCommandError, ErrCodeGeneric, "run failed", err)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
