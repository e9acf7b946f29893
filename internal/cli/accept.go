package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/pfch/internal/artifact"
	"github.com/roach88/pfch/internal/harness"
	"github.com/roach88/pfch/internal/store"
)

// AcceptOptions holds flags for the accept command.
type AcceptOptions struct {
	*RootOptions
	Out       string
	Database  string
	Write     bool
	Baselines bool
}

// ScenarioReport is the JSON form of one scenario outcome.
type ScenarioReport struct {
	Scenario string       `json:"scenario"`
	TestID   string       `json:"test_id"`
	RunHash  string       `json:"run_hash"`
	Passed   bool         `json:"passed"`
	Gates    []GateReport `json:"gates"`
	Dir      string       `json:"dir,omitempty"`
}

// GateReport is the JSON form of one gate verdict. Actual is null when the
// metric is missing or NaN.
type GateReport struct {
	Gate   string   `json:"gate"`
	Passed bool     `json:"passed"`
	Actual *float64 `json:"actual"`
	Detail string   `json:"detail,omitempty"`
}

// AcceptResult is the JSON payload of the accept command.
type AcceptResult struct {
	Passed    bool             `json:"passed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AcceptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "accept <scenarios-dir>",
		Short: "Run acceptance scenarios",
		Long: `Run every *.yaml scenario in a directory: the subject controller and its
baselines on the same seed, followed by the scenario's gates.

Exits 1 when any gate fails.

Example:
  pfch accept ./scenarios
  pfch accept ./scenarios --write --db ./runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccept(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Write, "write", false, "write run directories for subject runs")
	cmd.Flags().BoolVar(&opts.Baselines, "baselines", false, "with --write, also write baseline runs")
	cmd.Flags().StringVar(&opts.Out, "out", DefaultBaseDir, "base directory for run directories")
	cmd.Flags().StringVar(&opts.Database, "db", "", "with --write, index runs and gate outcomes here")

	return cmd
}

func runAccept(opts *AcceptOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeScenarioInvalid, "failed to load scenarios", err)
	}
	if len(scenarios) == 0 {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "no scenarios found in "+dir, nil)
	}

	logger, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	hopts := []harness.Option{harness.WithLogger(logger.Logger)}
	if opts.Write {
		w := artifact.NewWriter()
		w.Logger = logger.Logger
		hopts = append(hopts,
			harness.WithArtifacts(w, opts.Out),
			harness.WithBaselineArtifacts(opts.Baselines),
			harness.WithSimOptions(LoadEnv(opts.getenv).SimOptions()...),
		)
		if opts.Database != "" {
			st, err := store.Open(opts.Database)
			if err != nil {
				return fail(formatter, ExitCommandError, ErrCodeIndexFailed, "failed to open database", err)
			}
			defer st.Close()
			hopts = append(hopts, harness.WithIndex(st))
		}
	}

	h := harness.New(hopts...)
	result := AcceptResult{Passed: true, Scenarios: make([]ScenarioReport, 0, len(scenarios))}
	for _, s := range scenarios {
		formatter.VerboseLog("Running scenario %s (%s)", s.Name, s.TestID)
		outcome, err := h.Run(cmdContext(cmd), s)
		if err != nil {
			return simFailure(formatter, err)
		}
		result.Passed = result.Passed && outcome.Passed()
		result.Scenarios = append(result.Scenarios, ScenarioReport{
			Scenario: outcome.Scenario,
			TestID:   outcome.TestID,
			RunHash:  outcome.Subject.RunHash,
			Passed:   outcome.Passed(),
			Gates:    gateReports(outcome.Gates),
			Dir:      outcome.Dir,
		})
		if !formatter.IsJSON() {
			printOutcome(formatter, outcome)
		}
	}

	if formatter.IsJSON() {
		if result.Passed {
			return formatter.Success(result)
		}
		_ = formatter.Failure(ErrCodeGateFailed, "acceptance gates failed", result)
		return NewExitError(ExitFailure, "acceptance gates failed")
	}

	passed := 0
	for _, s := range result.Scenarios {
		if s.Passed {
			passed++
		}
	}
	fmt.Fprintf(formatter.Writer, "\n%d/%d scenario(s) passed\n", passed, len(result.Scenarios))
	if !result.Passed {
		return NewExitError(ExitFailure, "acceptance gates failed")
	}
	return nil
}

func gateReports(gates []harness.GateOutcome) []GateReport {
	out := make([]GateReport, len(gates))
	for i, g := range gates {
		out[i] = GateReport{Gate: g.Name, Passed: g.Passed, Detail: g.Detail}
		if !math.IsNaN(g.Actual) && !math.IsInf(g.Actual, 0) {
			v := g.Actual
			out[i].Actual = &v
		}
	}
	return out
}

func printOutcome(formatter *OutputFormatter, o *harness.Outcome) {
	mark := "✓"
	if !o.Passed() {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s %s (%s %s)\n", mark, o.Scenario, o.TestID, o.Subject.RunHash)
	for _, g := range o.Gates {
		status := "PASS"
		if !g.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(formatter.Writer, "    %s %s", status, g.Name)
		if g.Detail != "" {
			fmt.Fprintf(formatter.Writer, ": %s", g.Detail)
		}
		fmt.Fprintln(formatter.Writer)
	}
}
