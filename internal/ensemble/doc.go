// Package ensemble runs one simulation per scenario key.
//
// A Plan declares parameter samples, policy variants and activation windows.
// The Runner forms their cross product, validates it before any simulation
// starts and dispatches every ScenarioKey to the Simulator through a bounded
// worker pool.
//
// EXECUTION MODEL:
//
// Scenario tasks are independent: each writes only its own result slot and
// no state is shared between tasks. Completion is synchronized once, when all
// tasks have returned (join barrier). Workers == 1 serializes execution for
// simulators that are not reentrant.
//
// FAILURE MODEL:
//
// The first simulator error, missing result or mismatched key cancels the
// remaining tasks and the whole ensemble fails with SIMULATION_FAILURE naming
// the offending key. A partial ensemble is never returned, because
// aggregation assumes every declared key is present for every measure.
// Context cancellation is all-or-nothing for the same reason.
//
// The runner never caches: a fresh Run always re-executes every scenario.
package ensemble
