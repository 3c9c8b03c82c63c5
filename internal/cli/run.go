package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/epiband/internal/config"
	"github.com/roach88/epiband/internal/ensemble"
	"github.com/roach88/epiband/internal/ir"
	"github.com/roach88/epiband/internal/pipeline"
	"github.com/roach88/epiband/internal/simulator"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	OutDir   string
	Workers  int

	// Simulator overrides the experiment's simulator command (for testing).
	Simulator ensemble.Simulator

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs ensemble.RunIDGenerator
}

// RunSummary is the run command's result.
type RunSummary struct {
	RunID     string   `json:"run_id"`
	Scenarios int      `json:"scenarios"`
	Curves    int      `json:"curve_rows"`
	Points    int      `json:"point_rows"`
	Database  string   `json:"database,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Sample, simulate and summarize an experiment",
		Long: `Run an experiment end to end.

Parameters are sampled, the simulator runs once per
(sample, policy, window), and the ensemble is summarized into interval,
cost and quartile tables. Tables go to --out as CSV and, with --db, into a
SQLite result store. Nothing is written if any simulation fails.

Example:
  epiband run experiment.yaml --out ./results
  epiband run experiment.yaml --db ./results.db --workers 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite result store (overrides output.database)")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "directory for CSV tables (overrides output.dir)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent simulations (overrides workers; 1 runs serially)")

	return cmd
}

func runExperiment(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(formatter, "failed to read experiment", err)
	}
	exp, err := config.Load(path)
	if err != nil {
		return fail(formatter, "invalid experiment", err)
	}
	if opts.Database != "" {
		exp.Output.Database = opts.Database
	}
	if opts.OutDir != "" {
		exp.Output.Dir = opts.OutDir
	}
	if opts.Workers > 0 {
		exp.Workers = opts.Workers
	}

	sim := opts.Simulator
	if sim == nil {
		if exp.Simulator.Command == "" {
			return fail(formatter, "invalid experiment", ir.NewInvalidConfiguration("simulator.command is required"))
		}
		execSim, err := simulator.NewExec(exp.Simulator.Command, exp.Simulator.Args,
			simulator.WithEnv(exp.Simulator.Env...), simulator.WithDir(exp.Simulator.Dir))
		if err != nil {
			return fail(formatter, "invalid experiment", err)
		}
		logger.Debug("using external simulator", "command", execSim.Command())
		sim = execSim
	}

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if opts.RunIDs != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRunIDGenerator(opts.RunIDs))
	}
	if exp.Output.Database != "" {
		pipeOpts = append(pipeOpts, pipeline.WithStorePath(exp.Output.Database))
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.New(sim, pipeOpts...).Run(ctx, exp, ir.ConfigHash(data))
	if err != nil {
		return fail(formatter, "experiment failed", err)
	}

	formatter.RunID = res.RunID
	summary := RunSummary{
		RunID:     res.RunID,
		Scenarios: len(res.Ensemble.Runs),
		Curves:    len(res.Curves),
		Points:    len(res.Points),
		Database:  exp.Output.Database,
		Files:     res.Files,
	}
	return formatter.Report(summary, formatRunSummary(summary))
}

func formatRunSummary(s RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s complete: %d scenarios, %d curve rows, %d point rows\n",
		s.RunID, s.Scenarios, s.Curves, s.Points)
	if s.Database != "" {
		fmt.Fprintf(&b, "Stored in %s\n", s.Database)
	}
	for _, f := range s.Files {
		fmt.Fprintf(&b, "  wrote %s\n", f)
	}
	return b.String()
}
