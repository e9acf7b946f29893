package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pfch/internal/artifact"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <root>",
		Short: "Check run directories against the artifact contract",
		Long: `Walk root for run directories and check each one against the artifact
contract: required files present, run.json keys present, metrics.csv with a
header row and well-formed .npy arrays.

Exits 1 when any violation is found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	report, err := artifact.Validate(root)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "cannot validate "+root, err)
	}
	formatter.VerboseLog("Checked %d run(s) under %s", report.Runs, root)

	if !report.OK() {
		return outputViolations(formatter, report)
	}

	if formatter.IsJSON() {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d run(s) valid\n", report.Runs)
	return nil
}

// outputViolations prints every violation and returns exit code 1.
func outputViolations(formatter *OutputFormatter, report artifact.Report) error {
	msg := fmt.Sprintf("%d violation(s) in %d run(s)", len(report.Violations), report.Runs)
	if formatter.IsJSON() {
		if err := formatter.Failure(ErrCodeContract, msg, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed: "+msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, v := range report.Violations {
		fmt.Fprintf(formatter.Writer, "  %s\n", v)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, msg)

	return NewExitError(ExitFailure, "validation failed: "+msg)
}
