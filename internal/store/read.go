package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/epiband/internal/ir"
)

// ReadExperiment retrieves the header row of a run.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
func (s *Store) ReadExperiment(ctx context.Context, runID string) (Experiment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, name, region, horizon, seed, config_hash, capacity, scenarios, widths
		FROM experiments
		WHERE run_id = ?
	`, runID)

	exp, err := scanExperiment(row)
	if err != nil {
		return Experiment{}, fmt.Errorf("read experiment %s: %w", runID, err)
	}
	return exp, nil
}

// ListExperiments returns every stored run ordered by run id. Run ids are
// UUIDv7, so this is also creation order.
func (s *Store) ListExperiments(ctx context.Context) ([]Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, region, horizon, seed, config_hash, capacity, scenarios, widths
		FROM experiments
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	experiments := []Experiment{}
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return experiments, nil
}

// LatestRunID returns the most recent run id.
// Returns an error wrapping sql.ErrNoRows if the store is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM experiments ORDER BY run_id COLLATE BINARY DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// ReadSamples returns the parameter ensemble of a run in draw order.
func (s *Store) ReadSamples(ctx context.Context, runID string) ([]ir.ParameterSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT params FROM samples
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []ir.ParameterSample{}
	for rows.Next() {
		var params string
		if err := rows.Scan(&params); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample, err := unmarshalSample(params)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// ReadRuns returns every simulation result of a run in key order.
func (s *Store) ReadRuns(ctx context.Context, runID string) ([]ir.SimulationRun, error) {
	return s.readRuns(ctx, `
		SELECT payload FROM runs
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadRunsForPolicy returns the results of one policy variant in key order.
func (s *Store) ReadRunsForPolicy(ctx context.Context, runID, policyID string) ([]ir.SimulationRun, error) {
	return s.readRuns(ctx, `
		SELECT payload FROM runs
		WHERE run_id = ? AND policy_id = ?
		ORDER BY seq ASC
	`, runID, policyID)
}

func (s *Store) readRuns(ctx context.Context, query string, args ...any) ([]ir.SimulationRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.SimulationRun{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run, err := unmarshalRun(payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadScenarioIDs returns the scenario ids of a run in key order.
func (s *Store) ReadScenarioIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id FROM runs
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenario ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scenario id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario ids: %w", err)
	}
	return ids, nil
}

// ReadIntervals returns the interval summaries of one kind in write order.
func (s *Store) ReadIntervals(ctx context.Context, runID, kind string) ([]ir.IntervalSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT measure, policy_id, window_start, window_end, time, grp, domain, cost_type,
		       width, lower, median, upper, n, degenerate
		FROM intervals
		WHERE run_id = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	out := []ir.IntervalSummary{}
	for rows.Next() {
		var (
			r          ir.IntervalSummary
			tm         sql.NullInt64
			degenerate int
		)
		if err := rows.Scan(&r.Measure, &r.PolicyID, &r.Window.Start, &r.Window.End, &tm,
			&r.Group, &r.Domain, &r.CostType,
			&r.Width, &r.Lower, &r.Median, &r.Upper, &r.N, &degenerate); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		if tm.Valid {
			r.Time, r.HasTime = int(tm.Int64), true
		}
		r.Degenerate = degenerate != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intervals: %w", err)
	}
	return out, nil
}

// ReadCostMedians returns the deterministic cost medians in write order.
func (s *Store) ReadCostMedians(ctx context.Context, runID string) ([]ir.CostMedian, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, window_start, window_end, domain, cost_type, median, n
		FROM cost_medians
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cost medians: %w", err)
	}
	defer rows.Close()

	out := []ir.CostMedian{}
	for rows.Next() {
		var m ir.CostMedian
		if err := rows.Scan(&m.PolicyID, &m.Window.Start, &m.Window.End, &m.Domain, &m.CostType, &m.Median, &m.N); err != nil {
			return nil, fmt.Errorf("scan cost median: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cost medians: %w", err)
	}
	return out, nil
}

// rowScanner is the common interface of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (Experiment, error) {
	var (
		exp    Experiment
		seed   int64
		widths string
	)
	if err := row.Scan(&exp.RunID, &exp.Name, &exp.Region, &exp.Horizon, &seed,
		&exp.ConfigHash, &exp.Capacity, &exp.Scenarios, &widths); err != nil {
		return Experiment{}, err
	}
	exp.Seed = uint64(seed)
	w, err := unmarshalWidths(widths)
	if err != nil {
		return Experiment{}, err
	}
	exp.Widths = w
	return exp, nil
}
