package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/epiband/internal/ir"
)

// Interval kinds stored in the intervals table.
const (
	KindCurve = "curve"
	KindPoint = "point"
	KindCost  = "cost"
)

// Experiment is the header row of one stored execution.
type Experiment struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Horizon    int       `json:"horizon"`
	Seed       uint64    `json:"seed"`
	ConfigHash string    `json:"config_hash"`
	Capacity   float64   `json:"capacity"`
	Scenarios  int       `json:"scenarios"`
	Widths     []float64 `json:"widths"`
}

// WriteExperiment inserts the header row for a run.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency.
func (s *Store) WriteExperiment(ctx context.Context, exp Experiment) error {
	return s.inTx(ctx, "write experiment", func(tx *sql.Tx) error {
		return writeExperiment(ctx, tx, exp)
	})
}

// WriteSamples stores the parameter ensemble of a run in order.
// Duplicate tags are ignored.
func (s *Store) WriteSamples(ctx context.Context, runID string, samples []ir.ParameterSample) error {
	return s.inTx(ctx, "write samples", func(tx *sql.Tx) error {
		return writeSamples(ctx, tx, runID, samples)
	})
}

// WriteRuns stores simulation results keyed by scenario id.
// Each row carries its scenario id for provenance.
func (s *Store) WriteRuns(ctx context.Context, runID string, runs []ir.SimulationRun) error {
	return s.inTx(ctx, "write runs", func(tx *sql.Tx) error {
		return writeRuns(ctx, tx, runID, runs)
	})
}

// WriteIntervals replaces the stored interval summaries of one kind.
func (s *Store) WriteIntervals(ctx context.Context, runID, kind string, rows []ir.IntervalSummary) error {
	return s.inTx(ctx, "write intervals", func(tx *sql.Tx) error {
		return writeIntervals(ctx, tx, runID, kind, rows)
	})
}

// WriteCostMedians replaces the stored deterministic cost medians.
func (s *Store) WriteCostMedians(ctx context.Context, runID string, rows []ir.CostMedian) error {
	return s.inTx(ctx, "write cost medians", func(tx *sql.Tx) error {
		return writeCostMedians(ctx, tx, runID, rows)
	})
}

// WriteSnapshot stores a whole run in one transaction: the header, samples,
// runs, all interval kinds and cost medians. Either all of it is committed
// or none of it is. snap.Missing is ignored.
func (s *Store) WriteSnapshot(ctx context.Context, snap *Snapshot) error {
	runID := snap.Experiment.RunID
	return s.inTx(ctx, "write snapshot", func(tx *sql.Tx) error {
		if err := writeExperiment(ctx, tx, snap.Experiment); err != nil {
			return err
		}
		if err := writeSamples(ctx, tx, runID, snap.Samples); err != nil {
			return err
		}
		if err := writeRuns(ctx, tx, runID, snap.Runs); err != nil {
			return err
		}
		for _, set := range []struct {
			kind string
			rows []ir.IntervalSummary
		}{
			{KindCurve, snap.Curves},
			{KindPoint, snap.Points},
			{KindCost, snap.CostIntervals},
		} {
			if err := writeIntervals(ctx, tx, runID, set.kind, set.rows); err != nil {
				return err
			}
		}
		return writeCostMedians(ctx, tx, runID, snap.CostMedians)
	})
}

// inTx runs fn inside a single transaction and commits if fn succeeds.
func (s *Store) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func writeExperiment(ctx context.Context, tx *sql.Tx, exp Experiment) error {
	widths, err := marshalWidths(exp.Widths)
	if err != nil {
		return fmt.Errorf("experiment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments
		(run_id, name, region, horizon, seed, config_hash, capacity, scenarios, widths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		exp.RunID,
		exp.Name,
		exp.Region,
		exp.Horizon,
		int64(exp.Seed),
		exp.ConfigHash,
		exp.Capacity,
		exp.Scenarios,
		widths,
	)
	if err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

func writeSamples(ctx context.Context, tx *sql.Tx, runID string, samples []ir.ParameterSample) error {
	return batch(ctx, tx, "samples", nil, `
		INSERT INTO samples (run_id, seq, tag, params)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, len(samples), func(stmt *sql.Stmt, i int) error {
		params, err := marshalSample(samples[i])
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, runID, i, samples[i].Tag(), params)
		return err
	})
}

func writeRuns(ctx context.Context, tx *sql.Tx, runID string, runs []ir.SimulationRun) error {
	return batch(ctx, tx, "runs", nil, `
		INSERT INTO runs
		(run_id, scenario_id, seq, sample_tag, policy_id, window_start, window_end, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, len(runs), func(stmt *sql.Stmt, i int) error {
		run := runs[i]
		id, err := ir.ScenarioID(run.Key)
		if err != nil {
			return err
		}
		payload, err := marshalRun(run)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, runID, id, i,
			run.Key.SampleTag, run.Key.PolicyID, run.Key.Window.Start, run.Key.Window.End, payload)
		return err
	})
}

func writeIntervals(ctx context.Context, tx *sql.Tx, runID, kind string, rows []ir.IntervalSummary) error {
	reset := statement{`DELETE FROM intervals WHERE run_id = ? AND kind = ?`, []any{runID, kind}}
	return batch(ctx, tx, kind+" intervals", &reset, `
		INSERT INTO intervals
		(run_id, kind, seq, measure, policy_id, window_start, window_end, time, grp, domain, cost_type,
		 width, lower, median, upper, n, degenerate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		var tm sql.NullInt64
		if r.HasTime {
			tm = sql.NullInt64{Int64: int64(r.Time), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, runID, kind, i,
			r.Measure, r.PolicyID, r.Window.Start, r.Window.End, tm, r.Group, r.Domain, r.CostType,
			r.Width, r.Lower, r.Median, r.Upper, r.N, boolToInt(r.Degenerate))
		return err
	})
}

func writeCostMedians(ctx context.Context, tx *sql.Tx, runID string, rows []ir.CostMedian) error {
	reset := statement{`DELETE FROM cost_medians WHERE run_id = ?`, []any{runID}}
	return batch(ctx, tx, "cost medians", &reset, `
		INSERT INTO cost_medians
		(run_id, seq, policy_id, window_start, window_end, domain, cost_type, median, n)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		m := rows[i]
		_, err := stmt.ExecContext(ctx, runID, i,
			m.PolicyID, m.Window.Start, m.Window.End, m.Domain, m.CostType, m.Median, m.N)
		return err
	})
}

type statement struct {
	query string
	args  []any
}

// batch runs exec for i in [0, n) against one prepared statement on tx,
// after the optional reset statement.
func batch(ctx context.Context, tx *sql.Tx, op string, reset *statement, query string, n int, exec func(*sql.Stmt, int) error) error {
	if reset != nil {
		if _, err := tx.ExecContext(ctx, reset.query, reset.args...); err != nil {
			return fmt.Errorf("%s: reset: %w", op, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("%s: row %d: %w", op, i, err)
		}
	}
	return nil
}
