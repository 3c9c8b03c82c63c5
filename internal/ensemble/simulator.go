package ensemble

import (
	"context"

	"github.com/roach88/epiband/internal/ir"
)

// Request is everything the simulator receives for one scenario.
type Request struct {
	Region  string             `json:"region"`
	Key     ir.ScenarioKey     `json:"key"`
	Params  ir.ParameterSample `json:"params"`
	Policy  ir.PolicyVariant   `json:"policy"`
	Window  ir.Window          `json:"window"`
	Horizon int                `json:"horizon"`
}

// Simulator runs the epidemic model for one scenario.
//
// Implementations must be pure functions of the request: the same request
// yields the same run. They must also be safe for concurrent use unless the
// runner is configured with a single worker.
type Simulator interface {
	Simulate(ctx context.Context, req Request) (*ir.SimulationRun, error)
}

// SimulatorFunc adapts a function to the Simulator interface.
type SimulatorFunc func(ctx context.Context, req Request) (*ir.SimulationRun, error)

// Simulate calls f(ctx, req).
func (f SimulatorFunc) Simulate(ctx context.Context, req Request) (*ir.SimulationRun, error) {
	return f(ctx, req)
}
