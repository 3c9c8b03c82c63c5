package pipeline

import (
	"context"
	"fmt"

	"github.com/roach88/epiband/internal/config"
	"github.com/roach88/epiband/internal/store"
)

// Export re-aggregates a stored run. When exp is nil the run's stored widths
// and default cost and report settings are used; otherwise exp's aggregation,
// cost and report sections apply. When policies are given only those
// variants are re-aggregated. No simulation runs.
func Export(ctx context.Context, st *store.Store, runID string, exp *config.Experiment, policies ...string) (*Analysis, error) {
	snap, err := st.LoadSnapshot(ctx, runID, policies...)
	if err != nil {
		return nil, err
	}
	if !snap.IsComplete() {
		return nil, fmt.Errorf("run %s is incomplete: %d of %d scenarios missing",
			runID, snap.Missing, snap.Experiment.Scenarios)
	}
	if exp == nil {
		exp = &config.Experiment{Aggregate: config.Aggregate{Widths: snap.Experiment.Widths}}
	}
	return Analyze(snap.Runs, snap.Samples, snap.Experiment.Capacity, exp)
}
