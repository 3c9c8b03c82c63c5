package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/epiband/internal/config"
	"github.com/roach88/epiband/internal/pipeline"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	RunID    string
	Config   string
	OutDir   string
	Policies []string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-emit CSV tables from a stored run",
		Long: `Re-aggregate a stored run and write its tables without simulating.

With --config, the experiment's widths, cost and report settings apply, so a
stored ensemble can be re-summarized with different intervals or labels.
Without it, the run's stored widths and plain codes are used. --policy limits
the tables to the named policy variants.

Example:
  epiband export --db results.db --out ./tables
  epiband export --db results.db --run 0190... --config experiment.yaml --out ./tables
  epiband export --db results.db --policy none --policy elimination --out ./tables`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite result store (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (defaults to the latest run)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "experiment file supplying aggregation and report settings")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "directory for CSV tables (required)")
	cmd.Flags().StringSliceVar(&opts.Policies, "policy", nil, "export only these policy ids (repeatable)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	var exp *config.Experiment
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return fail(formatter, "invalid experiment", err)
		}
		exp = loaded
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return fail(formatter, "failed to open database", err)
	}
	defer st.Close()

	runID := opts.RunID
	if runID == "" {
		if runID, err = st.LatestRunID(ctx); err != nil {
			return fail(formatter, "no stored runs", err)
		}
	}
	formatter.RunID = runID
	formatter.VerboseLog("exporting run %s", runID)

	analysis, err := pipeline.Export(ctx, st, runID, exp, opts.Policies...)
	if err != nil {
		return fail(formatter, "export failed", err)
	}
	files, err := pipeline.WriteTables(opts.OutDir, analysis.Tables)
	if err != nil {
		return failWrite(formatter, "failed to write tables", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Exported run %s\n", runID)
	for _, f := range files {
		fmt.Fprintf(&b, "  wrote %s\n", f)
	}
	return formatter.Report(map[string]any{"run_id": runID, "files": files}, b.String())
}
