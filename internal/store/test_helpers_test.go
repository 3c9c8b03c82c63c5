package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/epiband/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestExperiment writes a header row and returns it.
func createTestExperiment(t *testing.T, s *Store, runID string, scenarios int) Experiment {
	t.Helper()
	exp := Experiment{
		RunID:      runID,
		Name:       "test",
		Region:     "NZ",
		Horizon:    10,
		Seed:       42,
		ConfigHash: ir.ConfigHash([]byte(runID)),
		Capacity:   500,
		Scenarios:  scenarios,
		Widths:     []float64{0.5, 0.95},
	}
	if err := s.WriteExperiment(context.Background(), exp); err != nil {
		t.Fatalf("WriteExperiment() failed: %v", err)
	}
	return exp
}

// createTestRuns builds n runs for one policy over window 0-10.
func createTestRuns(n int, policy string) []ir.SimulationRun {
	runs := make([]ir.SimulationRun, n)
	for i := range runs {
		runs[i] = ir.SimulationRun{
			Key: ir.ScenarioKey{
				SampleTag: fmt.Sprintf("sample_%d", i+1),
				PolicyID:  policy,
				Window:    ir.Window{Start: 0, End: 10},
			},
			Series: map[string][]ir.SeriesPoint{
				"infections": {{Time: 0, Value: float64(i)}, {Time: 1, Value: float64(i) + 0.5}},
			},
			Totals:    map[string]float64{"deaths": float64(i) / 3},
			AgeTotals: map[string]map[string]float64{"deaths": {"65+": 0.1}},
			Costs:     []ir.CostEntry{{Domain: "economic", CostType: "closures", Value: 1000}},
			Capacity:  500,
		}
	}
	return runs
}
