package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/epiband/internal/config"
	"github.com/roach88/epiband/internal/reshape"
	"github.com/roach88/epiband/internal/sampler"
)

// SampleOptions holds flags for the sample command.
type SampleOptions struct {
	*RootOptions
	Output string
}

// NewSampleCommand creates the sample command.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SampleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sample <experiment.yaml>",
		Short: "Draw the parameter ensemble without simulating",
		Long: `Draw the experiment's parameter ensemble and print it as CSV, one row
per sample with scalar fields and per-group vectors flattened.

Example:
  epiband sample experiment.yaml
  epiband sample experiment.yaml -o samples.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write CSV to this file instead of stdout")

	return cmd
}

func runSample(opts *SampleOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	exp, err := config.Load(path)
	if err != nil {
		return fail(formatter, "invalid experiment", err)
	}
	samples, err := sampler.Sample(exp.Sampler)
	if err != nil {
		return fail(formatter, "sampling failed", err)
	}
	table := reshape.SampleTable(samples)

	if opts.Output == "" {
		if err := table.WriteCSV(cmd.OutOrStdout()); err != nil {
			return failWrite(formatter, "failed to write samples", err)
		}
		return nil
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return failWrite(formatter, "failed to write samples", err)
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return failWrite(formatter, "failed to write samples", err)
	}
	if err := f.Close(); err != nil {
		return failWrite(formatter, "failed to write samples", err)
	}
	return formatter.Report(map[string]any{"file": opts.Output, "samples": len(samples)},
		fmt.Sprintf("Wrote %d samples to %s\n", len(samples), opts.Output))
}
