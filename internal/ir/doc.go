// Package ir provides the shared data model for epiband ensembles.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - ParameterSample is immutable: accessors return copies
//   - ScenarioKey is the unit of ensemble work and is unique per execution
//   - ResultRecord is the only input shape accepted by aggregation
//   - All JSON tags use snake_case
package ir
