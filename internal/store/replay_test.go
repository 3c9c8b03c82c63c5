package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/epiband/internal/ir"
)

func TestLoadSnapshot_Complete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	exp := createTestExperiment(t, s, "run-1", 2)

	samples := []ir.ParameterSample{
		ir.NewParameterSample("sample_1", 0, map[string]float64{"r0": 1.2}, nil),
		ir.NewParameterSample("sample_2", 1, map[string]float64{"r0": 2.1}, nil),
	}
	runs := createTestRuns(2, "none")
	w := ir.Window{Start: 0, End: 10}
	costs := []ir.IntervalSummary{
		{GroupKey: ir.GroupKey{Measure: "cost", PolicyID: "none", Window: w, Domain: "health", CostType: "mortality"}, Width: 0.5, Lower: 1, Median: 2, Upper: 3, N: 2},
	}
	require.NoError(t, s.WriteSamples(ctx, "run-1", samples))
	require.NoError(t, s.WriteRuns(ctx, "run-1", runs))
	require.NoError(t, s.WriteIntervals(ctx, "run-1", KindCost, costs))

	snap, err := s.LoadSnapshot(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, exp, snap.Experiment)
	assert.Len(t, snap.Samples, 2)
	assert.Equal(t, runs, snap.Runs)
	assert.Equal(t, costs, snap.CostIntervals)
	assert.Empty(t, snap.Curves)
	assert.Empty(t, snap.CostMedians)
	assert.True(t, snap.IsComplete())
}

func TestLoadSnapshot_Incomplete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 5)
	require.NoError(t, s.WriteRuns(ctx, "run-1", createTestRuns(3, "none")))

	snap, err := s.LoadSnapshot(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, snap.IsComplete())
	assert.Equal(t, 2, snap.Missing)
}

func TestLoadSnapshot_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func testSnapshot(runID string) *Snapshot {
	w := ir.Window{Start: 0, End: 10}
	runs := append(createTestRuns(2, "none"), createTestRuns(2, "elimination")...)
	return &Snapshot{
		Experiment: Experiment{
			RunID:      runID,
			Name:       "snapshot",
			Region:     "NZ",
			Horizon:    10,
			Seed:       7,
			ConfigHash: ir.ConfigHash([]byte(runID)),
			Capacity:   500,
			Scenarios:  len(runs),
			Widths:     []float64{0.5},
		},
		Samples: []ir.ParameterSample{
			ir.NewParameterSample("sample_1", 0, map[string]float64{"r0": 1.2}, nil),
			ir.NewParameterSample("sample_2", 1, map[string]float64{"r0": 2.1}, nil),
		},
		Runs: runs,
		Curves: []ir.IntervalSummary{
			{GroupKey: ir.GroupKey{Measure: "infections", PolicyID: "none", Window: w, Time: 1, HasTime: true}, Width: 0.5, Lower: 1, Median: 2, Upper: 3, N: 2},
		},
		Points: []ir.IntervalSummary{
			{GroupKey: ir.GroupKey{Measure: "deaths", PolicyID: "none", Window: w}, Width: 0.5, Lower: 0.1, Median: 0.2, Upper: 0.3, N: 2},
		},
		CostIntervals: []ir.IntervalSummary{
			{GroupKey: ir.GroupKey{Measure: "cost", PolicyID: "none", Window: w, Domain: "health", CostType: "mortality"}, Width: 0.5, Lower: 1, Median: 2, Upper: 3, N: 2},
		},
		CostMedians: []ir.CostMedian{
			{PolicyID: "none", Window: w, Domain: "economic", CostType: "closures", Median: 1000, N: 2},
		},
	}
}

func TestWriteSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testSnapshot("run-1")
	require.NoError(t, s.WriteSnapshot(ctx, want))

	got, err := s.LoadSnapshot(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want.Experiment, got.Experiment)
	assert.Equal(t, want.Runs, got.Runs)
	assert.Equal(t, want.Curves, got.Curves)
	assert.Equal(t, want.Points, got.Points)
	assert.Equal(t, want.CostIntervals, got.CostIntervals)
	assert.Equal(t, want.CostMedians, got.CostMedians)
	assert.Len(t, got.Samples, 2)
	assert.True(t, got.IsComplete())
}

func TestWriteSnapshot_AllOrNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// the last table written rejects every row
	_, err := s.db.Exec(`
		CREATE TRIGGER reject_medians BEFORE INSERT ON cost_medians
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`)
	require.NoError(t, err)

	err = s.WriteSnapshot(ctx, testSnapshot("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write snapshot")

	experiments, err := s.ListExperiments(ctx)
	require.NoError(t, err)
	assert.Empty(t, experiments)
	runs, err := s.ReadRuns(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, runs)
	curves, err := s.ReadIntervals(ctx, "run-1", KindCurve)
	require.NoError(t, err)
	assert.Empty(t, curves)
}

func TestLoadSnapshot_SelectedPolicies(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSnapshot(ctx, testSnapshot("run-1")))

	snap, err := s.LoadSnapshot(ctx, "run-1", "elimination")
	require.NoError(t, err)
	require.Len(t, snap.Runs, 2)
	for _, run := range snap.Runs {
		assert.Equal(t, "elimination", run.Key.PolicyID)
	}
	assert.True(t, snap.IsComplete())

	// policies come back in the order asked for
	snap, err = s.LoadSnapshot(ctx, "run-1", "elimination", "none")
	require.NoError(t, err)
	require.Len(t, snap.Runs, 4)
	assert.Equal(t, "elimination", snap.Runs[0].Key.PolicyID)
	assert.Equal(t, "none", snap.Runs[3].Key.PolicyID)
}

func TestLoadSnapshot_UnknownPolicy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSnapshot(ctx, testSnapshot("run-1")))

	_, err := s.LoadSnapshot(ctx, "run-1", "lockdown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Contains(t, err.Error(), `"lockdown"`)
}

func TestLoadSnapshot_ScenarioIDMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSnapshot(ctx, testSnapshot("run-1")))

	_, err := s.db.Exec(`UPDATE runs SET scenario_id = 'tampered' WHERE run_id = 'run-1' AND seq = 1`)
	require.NoError(t, err)

	_, err = s.LoadSnapshot(ctx, "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 1: stored scenario id tampered")
}
