package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/epiband/internal/store"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, database, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite result store (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *RootOptions, database string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	st, err := openExisting(database)
	if err != nil {
		return fail(formatter, "failed to open database", err)
	}
	defer st.Close()

	experiments, err := st.ListExperiments(commandContext(cmd))
	if err != nil {
		return fail(formatter, "failed to list runs", err)
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tNAME\tREGION\tSCENARIOS\tSEED")
	for _, e := range experiments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", e.RunID, e.Name, e.Region, e.Scenarios, e.Seed)
	}
	tw.Flush()
	return formatter.Report(experiments, b.String())
}

// openExisting opens a store that must already exist. Open alone would
// create an empty database for a mistyped path.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}
