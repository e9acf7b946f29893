package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pfch/internal/artifact"
)

// PinsOptions holds flags for the pins command.
type PinsOptions struct {
	*RootOptions
	Base string
}

// NewPinsCommand creates the pinned-runs reader.
func NewPinsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PinsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pins <lockfile>",
		Short: "Summarize the runs pinned by a lockfile",
		Long: `Read a YAML lockfile listing {test_id, run_hash} pins and print one
summary line per pinned run:

  <test_id> <run_hash> controller=<c> seed=<s> <scalar>=<value> ...

Exits 2 at the first pinned run with a missing required file.

Example:
  pfch pins runs.lock.yaml --base ./artifacts`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPins(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Base, "base", DefaultBaseDir, "base directory of run directories")

	return cmd
}

func runPins(opts *PinsOptions, lockfile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	pins, err := artifact.LoadPins(lockfile)
	if err != nil {
		if artifact.IsBadPin(err) {
			return fail(formatter, ExitCommandError, ErrCodeBadPin, "invalid lockfile", err)
		}
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "cannot read lockfile", err)
	}
	formatter.VerboseLog("Loaded %d pin(s) from %s", len(pins), lockfile)

	summaries, err := artifact.SummarizePins(opts.Base, pins)
	if !formatter.IsJSON() {
		for _, s := range summaries {
			fmt.Fprintln(formatter.Writer, s.Line())
		}
	}
	if err != nil {
		code := ErrCodeGeneric
		if artifact.IsMissingArtifact(err) {
			code = ErrCodeMissingArtifact
		}
		if formatter.IsJSON() {
			_ = formatter.Failure(code, err.Error(), summaries)
		} else {
			_ = formatter.Error(code, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, code+": pinned run unreadable", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(summaries)
	}
	return nil
}
