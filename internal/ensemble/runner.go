package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/epiband/internal/ir"
)

// DefaultMaxScenarios bounds the cross product of one plan.
// This prevents a typo in a config from launching millions of simulations.
const DefaultMaxScenarios = 1_000_000

// Plan declares one ensemble execution.
type Plan struct {
	Region   string
	Samples  []ir.ParameterSample
	Policies []ir.PolicyVariant
	Windows  []ir.Window
	Horizon  int
}

// Ensemble is the complete, keyed result of one execution.
// Runs[i] is the result for Keys[i].
type Ensemble struct {
	RunID    string
	Region   string
	Horizon  int
	Capacity float64
	Keys     []ir.ScenarioKey
	Runs     []ir.SimulationRun

	index map[ir.ScenarioKey]int
}

// Lookup returns the run for key.
func (e *Ensemble) Lookup(key ir.ScenarioKey) (ir.SimulationRun, bool) {
	i, ok := e.index[key]
	if !ok {
		return ir.SimulationRun{}, false
	}
	return e.Runs[i], true
}

// Runner executes plans against a simulator.
type Runner struct {
	sim          Simulator
	workers      int
	maxScenarios int
	runIDs       RunIDGenerator
	logger       *slog.Logger
}

// RunnerOption allows configuration of runner parameters.
type RunnerOption func(*Runner)

// WithWorkers sets the worker pool size. 1 serializes execution.
// Values < 1 keep the default (GOMAXPROCS).
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// WithMaxScenarios sets the ceiling on the plan's cross product.
func WithMaxScenarios(n int) RunnerOption {
	return func(r *Runner) {
		r.maxScenarios = n
	}
}

// WithRunIDGenerator overrides the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) RunnerOption {
	return func(r *Runner) {
		r.runIDs = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner for sim.
func NewRunner(sim Simulator, opts ...RunnerOption) *Runner {
	r := &Runner{
		sim:          sim,
		workers:      runtime.GOMAXPROCS(0),
		maxScenarios: DefaultMaxScenarios,
		runIDs:       UUIDv7Generator{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Keys returns the plan's cross product in deterministic order:
// sample, then policy, then window.
func (p Plan) Keys() []ir.ScenarioKey {
	keys := make([]ir.ScenarioKey, 0, len(p.Samples)*len(p.Policies)*len(p.Windows))
	for _, s := range p.Samples {
		for _, pol := range p.Policies {
			for _, w := range p.Windows {
				keys = append(keys, ir.ScenarioKey{SampleTag: s.Tag(), PolicyID: pol.ID, Window: w})
			}
		}
	}
	return keys
}

// Validate checks the plan before any simulation runs.
func (p Plan) Validate() error {
	if p.Horizon <= 0 {
		return ir.NewInvalidConfiguration(fmt.Sprintf("horizon must be positive, got %d", p.Horizon))
	}
	if len(p.Samples) == 0 {
		return ir.NewInvalidConfiguration("ensemble has no parameter samples")
	}
	if len(p.Policies) == 0 {
		return ir.NewInvalidConfiguration("ensemble has no policy variants")
	}
	if len(p.Windows) == 0 {
		return ir.NewInvalidConfiguration("ensemble has no timing windows")
	}

	tags := make(map[string]bool, len(p.Samples))
	schema := fmt.Sprint(p.Samples[0].Schema())
	for _, s := range p.Samples {
		if s.Tag() == "" {
			return ir.NewInvalidConfiguration("parameter sample has an empty tag")
		}
		if tags[s.Tag()] {
			return ir.NewInvalidConfiguration(fmt.Sprintf("duplicate sample tag %q", s.Tag()))
		}
		tags[s.Tag()] = true
		if got := fmt.Sprint(s.Schema()); got != schema {
			return ir.NewInvalidConfiguration(fmt.Sprintf("sample %s has schema %s, expected %s", s.Tag(), got, schema))
		}
	}

	ids := make(map[string]bool, len(p.Policies))
	for _, pol := range p.Policies {
		if pol.ID == "" {
			return ir.NewInvalidConfiguration("policy variant has an empty id")
		}
		if ids[pol.ID] {
			return ir.NewInvalidConfiguration(fmt.Sprintf("duplicate policy id %q", pol.ID))
		}
		ids[pol.ID] = true
	}

	windows := make(map[ir.Window]bool, len(p.Windows))
	for _, w := range p.Windows {
		if err := w.Validate(p.Horizon); err != nil {
			return err
		}
		if windows[w] {
			return ir.NewInvalidConfiguration(fmt.Sprintf("duplicate window %s", w))
		}
		windows[w] = true
	}
	return nil
}

// Run executes one simulation per scenario key and returns the complete
// ensemble, or an error and no results.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Ensemble, error) {
	if r.sim == nil {
		return nil, ir.NewInvalidConfiguration("no simulator configured")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	total := len(plan.Samples) * len(plan.Policies) * len(plan.Windows)
	if r.maxScenarios > 0 && total > r.maxScenarios {
		return nil, ir.NewInvalidConfiguration(fmt.Sprintf("plan has %d scenarios, limit is %d", total, r.maxScenarios))
	}

	runID := r.runIDs.Generate()
	keys := plan.Keys()
	logger := r.logger.With("run_id", runID)
	logger.Info("ensemble starting",
		"region", plan.Region,
		"samples", len(plan.Samples),
		"policies", len(plan.Policies),
		"windows", len(plan.Windows),
		"scenarios", len(keys),
		"workers", r.workers,
	)

	samples := make(map[string]ir.ParameterSample, len(plan.Samples))
	for _, s := range plan.Samples {
		samples[s.Tag()] = s
	}
	policies := make(map[string]ir.PolicyVariant, len(plan.Policies))
	for _, p := range plan.Policies {
		policies[p.ID] = p
	}

	runs := make([]ir.SimulationRun, len(keys))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			req := Request{
				Region:  plan.Region,
				Key:     key,
				Params:  samples[key.SampleTag],
				Policy:  policies[key.PolicyID],
				Window:  key.Window,
				Horizon: plan.Horizon,
			}
			run, err := r.sim.Simulate(gctx, req)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return err
				}
				return ir.NewSimulationFailure(key, "simulator raised", err)
			}
			if run == nil {
				return ir.NewSimulationFailure(key, "simulator returned no result", nil)
			}
			if run.Key != key {
				return ir.NewSimulationFailure(key, fmt.Sprintf("simulator returned result for %s", run.Key), nil)
			}
			runs[i] = *run
			if n := done.Add(1); n%progressEvery(len(keys)) == 0 {
				logger.Debug("ensemble progress", "completed", n, "scenarios", len(keys))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if key, ok := ir.FailedKey(err); ok {
			logger.Error("ensemble aborted", "scenario", key.String(), "error", err)
			return nil, err
		}
		logger.Warn("ensemble cancelled", "completed", done.Load(), "error", err)
		return nil, fmt.Errorf("ensemble %s cancelled: %w", runID, err)
	}
	// The loop stops scheduling once the context is done; a cancellation that
	// raced with the last task can leave the group error nil.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ensemble %s cancelled: %w", runID, err)
	}

	ens := &Ensemble{
		RunID:   runID,
		Region:  plan.Region,
		Horizon: plan.Horizon,
		Keys:    keys,
		Runs:    runs,
		index:   make(map[ir.ScenarioKey]int, len(keys)),
	}
	for i, k := range keys {
		ens.index[k] = i
		if runs[i].Capacity > ens.Capacity {
			ens.Capacity = runs[i].Capacity
		}
	}

	logger.Info("ensemble complete", "scenarios", len(runs))
	return ens, nil
}

// progressEvery returns the debug log interval for n scenarios.
func progressEvery(n int) int64 {
	if n < 10 {
		return 1
	}
	return int64(n / 10)
}
