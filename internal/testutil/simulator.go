package testutil

import (
	"context"
	"sync"

	"github.com/roach88/epiband/internal/ensemble"
	"github.com/roach88/epiband/internal/ir"
)

// Age groups reported by StubSimulator, in canonical order.
var StubAgeGroups = []string{"0-19", "20-64", "65+"}

var stubAgeShare = []float64{0.1, 0.3, 0.6}

// StubCapacity is the capacity constant reported by StubSimulator.
const StubCapacity = 500

// StubSimulator is a deterministic stand-in for the epidemic model.
//
// Trajectories are simple closed-form functions of the "r0" and "severity"
// fields and the policy intensity, so tests can predict every value:
//
//	infections(t) = r0 * (t+1) * (1 - 0.5*mean(intensity)) while the window is active
//	infections(t) = r0 * (t+1) otherwise
//	hospital(t)   = infections(t) * severity
//
// Costs: closures = sum(intensity) * duration * 1000 and
// education = intensity[0] * duration * 500 are deterministic; absences,
// mortality and life years scale with infections.
//
// Thread-safety: Simulate is safe for concurrent use via internal mutex.
type StubSimulator struct {
	mu    sync.Mutex
	calls map[ir.ScenarioKey]int

	// FailOn makes Simulate return the error for the given key.
	FailOn map[ir.ScenarioKey]error

	// Truncate limits the last reported time step for a sample tag.
	Truncate map[string]int

	// Nil makes Simulate return (nil, nil) for the given key.
	Nil map[ir.ScenarioKey]bool

	// Block makes Simulate wait for context cancellation for the given key.
	Block map[ir.ScenarioKey]bool
}

// NewStubSimulator creates a stub with no failures.
func NewStubSimulator() *StubSimulator {
	return &StubSimulator{calls: make(map[ir.ScenarioKey]int)}
}

// Simulate implements ensemble.Simulator.
func (s *StubSimulator) Simulate(ctx context.Context, req ensemble.Request) (*ir.SimulationRun, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[ir.ScenarioKey]int)
	}
	s.calls[req.Key]++
	failErr := s.FailOn[req.Key]
	returnNil := s.Nil[req.Key]
	block := s.Block[req.Key]
	last, truncated := s.Truncate[req.Key.SampleTag]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failErr != nil {
		return nil, failErr
	}
	if returnNil {
		return nil, nil
	}
	if !truncated || last > req.Horizon {
		last = req.Horizon
	}
	return StubRun(req, last), nil
}

// Calls returns the total number of Simulate calls.
func (s *StubSimulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// CallsFor returns the number of Simulate calls for key.
func (s *StubSimulator) CallsFor(key ir.ScenarioKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// StubRun computes the stub trajectory for req through time step last.
func StubRun(req ensemble.Request, last int) *ir.SimulationRun {
	r0 := valueOr(req.Params, "r0", 1)
	severity := valueOr(req.Params, "severity", 0.1)

	var sumIntensity, school float64
	for i, v := range req.Policy.Intensity {
		sumIntensity += v
		if i == 0 {
			school = v
		}
	}
	meanIntensity := 0.0
	if n := len(req.Policy.Intensity); n > 0 {
		meanIntensity = sumIntensity / float64(n)
	}

	infections := make([]ir.SeriesPoint, 0, last+1)
	hospital := make([]ir.SeriesPoint, 0, last+1)
	var total float64
	for t := 0; t <= last; t++ {
		v := r0 * float64(t+1)
		if t >= req.Window.Start && t < req.Window.End {
			v *= 1 - 0.5*meanIntensity
		}
		total += v
		infections = append(infections, ir.SeriesPoint{Time: t, Value: v})
		hospital = append(hospital, ir.SeriesPoint{Time: t, Value: v * severity})
	}

	deaths := total * severity * 0.01
	ageDeaths := make(map[string]float64, len(StubAgeGroups))
	for i, g := range StubAgeGroups {
		ageDeaths[g] = deaths * stubAgeShare[i]
	}
	duration := float64(req.Window.Duration())

	return &ir.SimulationRun{
		Key: req.Key,
		Series: map[string][]ir.SeriesPoint{
			"infections": infections,
			"hospital":   hospital,
		},
		Totals: map[string]float64{
			"infections": total,
			"deaths":     deaths,
		},
		AgeTotals: map[string]map[string]float64{
			"deaths": ageDeaths,
		},
		Costs: []ir.CostEntry{
			{Domain: "economic", CostType: "closures", Value: sumIntensity * duration * 1000},
			{Domain: "education", CostType: "education", Value: school * duration * 500},
			{Domain: "economic", CostType: "absences", Value: total * 2},
			{Domain: "health", CostType: "mortality", Value: deaths * 10000},
			{Domain: "life_years", CostType: "life_years", Value: deaths * 12},
		},
		Capacity: StubCapacity,
	}
}

func valueOr(p ir.ParameterSample, name string, def float64) float64 {
	if v, ok := p.Value(name); ok {
		return v
	}
	return def
}
