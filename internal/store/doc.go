// Package store provides SQLite-backed durable storage for experiment results.
//
// One experiment execution is identified by its run id and owns:
//   - Samples: the parameter ensemble, one JSON document per tag
//   - Runs: every simulation result, keyed by content-addressed scenario id
//   - Intervals: curve and point interval summaries
//   - Cost medians: the deterministic part of the cost breakdown
//
// Rows are written in one transaction per table and carry a seq column with
// the caller's order. Every read orders by seq, so a stored run re-exports
// byte-identical tables.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
