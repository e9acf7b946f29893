package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pfch/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
	TestID   string
	Limit    int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed runs",
		Long: `List the runs recorded in the SQLite index, oldest first.

Example:
  pfch list --db ./runs.db
  pfch list --db ./runs.db --test MT01 --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite index (required)")
	cmd.Flags().StringVar(&opts.TestID, "test", "", "only runs of this experiment")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of runs (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open creates missing databases.
	if _, err := os.Stat(opts.Database); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "database not found: "+opts.Database, nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeIndexFailed, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmdContext(cmd), store.ListFilter{TestID: opts.TestID, Limit: opts.Limit})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeIndexFailed, "failed to list runs", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs indexed")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%-5s %-8s %-30s %-6s %-16s %s\n", "TEST", "HASH", "CONTROLLER", "SEED", "HEADLINE", "VALUE")
	for _, r := range runs {
		value := "-"
		if r.HeadlineValue != nil {
			value = strconv.FormatFloat(*r.HeadlineValue, 'g', 6, 64)
		}
		if r.Unstable {
			value += " (unstable)"
		}
		fmt.Fprintf(formatter.Writer, "%-5s %-8s %-30s %-6d %-16s %s\n", r.TestID, r.RunHash, r.Controller, r.Seed, r.Headline, value)
	}
	return nil
}
