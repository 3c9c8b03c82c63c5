package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/epiband/internal/ir"
)

// Snapshot is everything stored for one run, enough to re-aggregate or
// re-export without simulating again.
type Snapshot struct {
	Experiment    Experiment
	Samples       []ir.ParameterSample
	Runs          []ir.SimulationRun
	Curves        []ir.IntervalSummary
	Points        []ir.IntervalSummary
	CostIntervals []ir.IntervalSummary
	CostMedians   []ir.CostMedian

	// Missing is the number of declared scenarios without a stored run.
	Missing int
}

// IsComplete reports whether every declared scenario has a stored run.
func (s Snapshot) IsComplete() bool { return s.Missing == 0 }

// LoadSnapshot reads a stored run. When policies are given only their runs
// are loaded, in the order given; each must have at least one stored run.
// Missing always counts against every declared scenario.
func (s *Store) LoadSnapshot(ctx context.Context, runID string, policies ...string) (*Snapshot, error) {
	exp, err := s.ReadExperiment(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap := &Snapshot{Experiment: exp}

	ids, err := s.ReadScenarioIDs(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if n := exp.Scenarios - len(ids); n > 0 {
		snap.Missing = n
	}

	if snap.Samples, err = s.ReadSamples(ctx, runID); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(policies) == 0 {
		if snap.Runs, err = s.ReadRuns(ctx, runID); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if err := verifyScenarioIDs(snap.Runs, ids); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", runID, err)
		}
	} else {
		for _, policy := range policies {
			runs, err := s.ReadRunsForPolicy(ctx, runID, policy)
			if err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
			if len(runs) == 0 {
				return nil, fmt.Errorf("load snapshot %s: policy %q: %w", runID, policy, sql.ErrNoRows)
			}
			snap.Runs = append(snap.Runs, runs...)
		}
	}
	if snap.Curves, err = s.ReadIntervals(ctx, runID, KindCurve); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Points, err = s.ReadIntervals(ctx, runID, KindPoint); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.CostIntervals, err = s.ReadIntervals(ctx, runID, KindCost); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.CostMedians, err = s.ReadCostMedians(ctx, runID); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// verifyScenarioIDs checks each stored scenario id against the key of the
// run stored at the same position.
func verifyScenarioIDs(runs []ir.SimulationRun, ids []string) error {
	if len(runs) != len(ids) {
		return fmt.Errorf("%d runs but %d scenario ids", len(runs), len(ids))
	}
	for i, run := range runs {
		id, err := ir.ScenarioID(run.Key)
		if err != nil {
			return err
		}
		if id != ids[i] {
			return fmt.Errorf("run %d: stored scenario id %s does not match key %s/%s", i, ids[i], run.Key.SampleTag, run.Key.PolicyID)
		}
	}
	return nil
}
