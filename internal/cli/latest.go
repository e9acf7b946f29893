package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pfch/internal/artifact"
)

// LatestOptions holds flags for the latest command.
type LatestOptions struct {
	*RootOptions
	Base string
}

// NewLatestCommand creates the latest command.
func NewLatestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LatestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "latest <test_id>",
		Short: "Summarize the most recent run of an experiment",
		Long: `Find the most recently written run directory of an experiment, by the
modification time of its meta.json, and print its summary line.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLatest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Base, "base", DefaultBaseDir, "base directory of run directories")

	return cmd
}

func runLatest(opts *LatestOptions, testID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dir, err := artifact.Latest(opts.Base, testID)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeMissingArtifact, "no runs found", err)
	}
	formatter.VerboseLog("Latest run of %s: %s", testID, dir)

	summary, err := artifact.Summarize(dir)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeMissingArtifact, "latest run unreadable", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	fmt.Fprintln(formatter.Writer, summary.Line())
	fmt.Fprintf(formatter.Writer, "  dir: %s\n", summary.Dir)
	fmt.Fprintf(formatter.Writer, "  created: %s\n", summary.CreatedUTC)
	return nil
}
