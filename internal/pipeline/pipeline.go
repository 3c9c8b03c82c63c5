// Package pipeline runs an experiment end to end: sample parameters, run the
// ensemble, aggregate, decompose costs, reshape into tables, then write CSV
// files and the result store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/roach88/epiband/internal/aggregate"
	"github.com/roach88/epiband/internal/config"
	"github.com/roach88/epiband/internal/cost"
	"github.com/roach88/epiband/internal/ensemble"
	"github.com/roach88/epiband/internal/ir"
	"github.com/roach88/epiband/internal/reshape"
	"github.com/roach88/epiband/internal/sampler"
	"github.com/roach88/epiband/internal/store"
)

// Pipeline executes experiments against one simulator.
type Pipeline struct {
	sim       ensemble.Simulator
	store     *store.Store
	storePath string
	runIDs    ensemble.RunIDGenerator
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists every completed run to s.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithStorePath persists every completed run to the store at path. The
// store is opened only once the ensemble and its analysis have succeeded, so
// a failed run creates no database file.
func WithStorePath(path string) Option {
	return func(p *Pipeline) {
		p.storePath = path
	}
}

// WithRunIDGenerator overrides the run id generator.
func WithRunIDGenerator(g ensemble.RunIDGenerator) Option {
	return func(p *Pipeline) {
		p.runIDs = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline.
func New(sim ensemble.Simulator, opts ...Option) *Pipeline {
	p := &Pipeline{sim: sim, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is a completed experiment.
type Result struct {
	*Analysis

	RunID    string
	Samples  []ir.ParameterSample
	Ensemble *ensemble.Ensemble

	// Files lists the CSV files written, if any.
	Files []string
}

// Analysis is the aggregated view of an ensemble.
type Analysis struct {
	Widths    []float64
	Curves    []ir.IntervalSummary
	Points    []ir.IntervalSummary
	Costs     *cost.Breakdown
	Quartiles []reshape.QuartileRow
	Tables    []reshape.Table
}

// Run executes exp. configHash identifies the experiment source and is
// stored with the run. Nothing is written unless the whole ensemble succeeds.
func (p *Pipeline) Run(ctx context.Context, exp *config.Experiment, configHash string) (*Result, error) {
	samples, err := sampler.Sample(exp.Sampler)
	if err != nil {
		return nil, err
	}
	if _, err := aggregate.NormalizeWidths(exp.Aggregate.Widths); err != nil {
		return nil, err
	}

	opts := []ensemble.RunnerOption{
		ensemble.WithWorkers(exp.Workers),
		ensemble.WithLogger(p.logger),
	}
	if exp.MaxScenarios > 0 {
		opts = append(opts, ensemble.WithMaxScenarios(exp.MaxScenarios))
	}
	if p.runIDs != nil {
		opts = append(opts, ensemble.WithRunIDGenerator(p.runIDs))
	}

	ens, err := ensemble.NewRunner(p.sim, opts...).Run(ctx, ensemble.Plan{
		Region:   exp.Region,
		Samples:  samples,
		Policies: exp.Policies,
		Windows:  exp.Windows,
		Horizon:  exp.Horizon,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := Analyze(ens.Runs, samples, ens.Capacity, exp)
	if err != nil {
		return nil, err
	}
	res := &Result{Analysis: analysis, RunID: ens.RunID, Samples: samples, Ensemble: ens}
	logger := p.logger.With("run_id", ens.RunID)

	if p.store != nil || p.storePath != "" {
		if err := p.persist(ctx, exp, configHash, res); err != nil {
			return nil, err
		}
		logger.Info("results stored", "scenarios", len(ens.Runs))
	}
	if exp.Output.Dir != "" {
		files, err := WriteTables(exp.Output.Dir, analysis.Tables)
		if err != nil {
			return nil, err
		}
		res.Files = files
		logger.Info("tables written", "dir", exp.Output.Dir, "files", len(files))
	}
	return res, nil
}

// Analyze aggregates runs with the experiment's aggregation, cost and report
// settings. It is pure: the same runs always yield the same tables.
func Analyze(runs []ir.SimulationRun, samples []ir.ParameterSample, capacity float64, exp *config.Experiment) (*Analysis, error) {
	widths, err := aggregate.NormalizeWidths(exp.Aggregate.Widths)
	if err != nil {
		return nil, err
	}

	curveRecords := reshape.Long(runs, reshape.LongSpec{Series: true, Measures: exp.Aggregate.CurveMeasures})
	pointRecords := reshape.Long(runs, reshape.LongSpec{Totals: true, AgeTotals: true, Measures: exp.Aggregate.PointMeasures})
	costRecords := reshape.Long(runs, reshape.LongSpec{Costs: true})

	curves, err := aggregate.CurveIntervals(curveRecords, widths)
	if err != nil {
		return nil, err
	}
	points, err := aggregate.PointIntervals(pointRecords, widths)
	if err != nil {
		return nil, err
	}
	breakdown, err := cost.Decompose(costRecords, exp.Costs.Options(widths))
	if err != nil {
		return nil, err
	}

	quartileRecords := slices.Concat(pointRecords, reshape.Filter(costRecords, func(r ir.ResultRecord) bool {
		return !slices.Contains(exp.Costs.ExcludeDomains, r.Domain)
	}))
	if len(exp.Report.QuartileMeasures) > 0 {
		quartileRecords = reshape.Filter(quartileRecords, func(r ir.ResultRecord) bool {
			return slices.Contains(exp.Report.QuartileMeasures, r.Measure)
		})
	}
	quartiles := reshape.QuartileSummary(quartileRecords, exp.Report.Digits())

	exporter := exp.Report.Exporter()
	tables := []reshape.Table{
		exporter.IntervalTable("curves", curves, capacity),
		exporter.IntervalTable("points", points, capacity),
		exporter.CostTable(breakdown),
		exporter.TotalsTable(breakdown.Totals()),
		exporter.QuartileTable(quartiles),
		reshape.SampleTable(samples),
	}

	return &Analysis{
		Widths:    widths,
		Curves:    curves,
		Points:    points,
		Costs:     breakdown,
		Quartiles: quartiles,
		Tables:    tables,
	}, nil
}

// WriteTables writes each table to dir/<name>.csv, creating dir.
func WriteTables(dir string, tables []reshape.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := make([]string, 0, len(tables))
	for _, t := range tables {
		path, err := t.WriteFile(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func (p *Pipeline) persist(ctx context.Context, exp *config.Experiment, configHash string, res *Result) (err error) {
	st := p.store
	if st == nil {
		if st, err = store.Open(p.storePath); err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); err == nil {
				err = closeErr
			}
		}()
	}

	return st.WriteSnapshot(ctx, &store.Snapshot{
		Experiment: store.Experiment{
			RunID:      res.RunID,
			Name:       exp.Name,
			Region:     exp.Region,
			Horizon:    exp.Horizon,
			Seed:       exp.Sampler.Seed,
			ConfigHash: configHash,
			Capacity:   res.Ensemble.Capacity,
			Scenarios:  len(res.Ensemble.Keys),
			Widths:     res.Widths,
		},
		Samples:       res.Samples,
		Runs:          res.Ensemble.Runs,
		Curves:        res.Curves,
		Points:        res.Points,
		CostIntervals: res.Costs.Stochastic,
		CostMedians:   res.Costs.Deterministic,
	})
}
