package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/epiband/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Name      string `json:"name,omitempty"`
	Scenarios int    `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <experiment.yaml>",
		Short: "Check an experiment without running it",
		Long: `Check an experiment file against the schema and the semantic rules
(sampling bounds, unique policies, windows inside the horizon, interval
widths) without drawing samples or running the simulator.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	exp, err := config.Load(path)
	if err != nil {
		return fail(formatter, "invalid experiment", err)
	}
	formatter.VerboseLog("%d samples x %d policies x %d windows", exp.Sampler.N, len(exp.Policies), len(exp.Windows))

	result := ValidationResult{Valid: true, Name: exp.Name, Scenarios: exp.Scenarios()}
	return formatter.Report(result, fmt.Sprintf("✓ %s is valid (%d scenarios)\n", path, result.Scenarios))
}
