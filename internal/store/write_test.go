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

func TestWriteExperiment_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestExperiment(t, s, "run-1", 4)

	got, err := s.ReadExperiment(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteExperiment_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 4)

	again := Experiment{RunID: "run-1", Name: "other", Widths: nil}
	require.NoError(t, s.WriteExperiment(ctx, again))

	got, err := s.ReadExperiment(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "test", got.Name)
}

func TestWriteExperiment_LargeSeed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	exp := Experiment{RunID: "run-seed", Seed: 1<<64 - 1}
	require.NoError(t, s.WriteExperiment(ctx, exp))

	got, err := s.ReadExperiment(ctx, "run-seed")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64-1), got.Seed)
	assert.Empty(t, got.Widths)
}

func TestReadExperiment_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadExperiment(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestWriteSamples_PreservesOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 0)

	samples := []ir.ParameterSample{
		ir.NewParameterSample("sample_2", 5, map[string]float64{"r0": 1.9}, map[string][]float64{"sev": {0.1, 0.2}}),
		ir.NewParameterSample("sample_1", 3, map[string]float64{"r0": 1.2}, map[string][]float64{"sev": {0.3, 0.4}}),
	}
	require.NoError(t, s.WriteSamples(ctx, "run-1", samples))

	got, err := s.ReadSamples(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sample_2", got[0].Tag())
	assert.Equal(t, 5, got[0].Index())
	v, ok := got[1].Value("r0")
	require.True(t, ok)
	assert.Equal(t, 1.2, v)
	vec, ok := got[1].Vector("sev")
	require.True(t, ok)
	assert.Equal(t, []float64{0.3, 0.4}, vec)
}

func TestWriteSamples_RequiresExperiment(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteSamples(context.Background(), "missing",
		[]ir.ParameterSample{ir.NewParameterSample("sample_1", 0, map[string]float64{"r0": 1}, nil)})
	assert.Error(t, err, "foreign key must reject samples for an unknown run")

	got, err := s.ReadSamples(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRuns_RoundTripAndProvenance(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 3)

	runs := createTestRuns(3, "none")
	require.NoError(t, s.WriteRuns(ctx, "run-1", runs))

	got, err := s.ReadRuns(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, runs, got)

	ids, err := s.ReadScenarioIDs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for i, id := range ids {
		assert.Equal(t, ir.MustScenarioID(runs[i].Key), id)
	}
}

func TestWriteRuns_DuplicateKeysIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 2)

	runs := createTestRuns(2, "none")
	require.NoError(t, s.WriteRuns(ctx, "run-1", runs))
	require.NoError(t, s.WriteRuns(ctx, "run-1", runs))

	got, err := s.ReadRuns(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadRunsForPolicy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 5)

	runs := append(createTestRuns(2, "none"), createTestRuns(3, "elimination")...)
	require.NoError(t, s.WriteRuns(ctx, "run-1", runs))

	got, err := s.ReadRunsForPolicy(ctx, "run-1", "elimination")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "sample_1", got[0].Key.SampleTag)
	assert.Equal(t, "elimination", got[2].Key.PolicyID)
}

func TestWriteIntervals_ReplacesKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 0)

	w := ir.Window{Start: 0, End: 10}
	curves := []ir.IntervalSummary{
		{GroupKey: ir.GroupKey{Measure: "infections", PolicyID: "none", Window: w, Time: 0, HasTime: true}, Width: 0.5, Lower: 1, Median: 2, Upper: 3, N: 10},
		{GroupKey: ir.GroupKey{Measure: "infections", PolicyID: "none", Window: w, Time: 1, HasTime: true}, Width: 0.5, Lower: 4, Median: 4, Upper: 4, N: 10, Degenerate: true},
	}
	points := []ir.IntervalSummary{
		{GroupKey: ir.GroupKey{Measure: "deaths", PolicyID: "none", Window: w, Group: "65+"}, Width: 0.95, Lower: 0.1, Median: 0.2, Upper: 0.3, N: 10},
	}
	require.NoError(t, s.WriteIntervals(ctx, "run-1", KindCurve, curves))
	require.NoError(t, s.WriteIntervals(ctx, "run-1", KindPoint, points))

	got, err := s.ReadIntervals(ctx, "run-1", KindCurve)
	require.NoError(t, err)
	assert.Equal(t, curves, got)

	gotPoints, err := s.ReadIntervals(ctx, "run-1", KindPoint)
	require.NoError(t, err)
	assert.Equal(t, points, gotPoints)
	assert.False(t, gotPoints[0].HasTime)

	// rewriting one kind leaves the others alone
	require.NoError(t, s.WriteIntervals(ctx, "run-1", KindCurve, curves[:1]))
	got, err = s.ReadIntervals(ctx, "run-1", KindCurve)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	gotPoints, err = s.ReadIntervals(ctx, "run-1", KindPoint)
	require.NoError(t, err)
	assert.Len(t, gotPoints, 1)
}

func TestWriteCostMedians_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 0)

	w := ir.Window{Start: 0, End: 10}
	medians := []ir.CostMedian{
		{PolicyID: "none", Window: w, Domain: "economic", CostType: "closures", Median: 0, N: 4},
		{PolicyID: "elimination", Window: w, Domain: "education", CostType: "education", Median: 5000, N: 4},
	}
	require.NoError(t, s.WriteCostMedians(ctx, "run-1", medians))
	require.NoError(t, s.WriteCostMedians(ctx, "run-1", medians))

	got, err := s.ReadCostMedians(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, medians, got)
}

func TestBatch_AtomicOnFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "run-1", 0)

	w := ir.Window{Start: 0, End: 10}
	original := []ir.CostMedian{{PolicyID: "none", Window: w, Domain: "economic", CostType: "closures", N: 1}}
	require.NoError(t, s.WriteCostMedians(ctx, "run-1", original))

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	err := s.WriteCostMedians(ctx2, "run-1", nil)
	require.Error(t, err)

	got, err := s.ReadCostMedians(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, original, got)
}
