package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/idlecore/internal/scheduler"
)

// Snapshot is the set of node stocks captured at one tick.
type Snapshot struct {
	RunID     string             `json:"run_id"`
	TickIndex int64              `json:"tick_index"`
	Values    map[string]float64 `json:"values"`
}

// ListRuns returns all runs in insertion order.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, tick_duration_ns, started_at, status, ticks_completed, error
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run by id. ok is false if no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (run Run, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, tick_duration_ns, started_at, status, ticks_completed, error
		FROM runs
		WHERE id = ?
	`, runID)

	run, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// ReadTicks returns a run's tick telemetry ordered by tick index.
func (s *Store) ReadTicks(ctx context.Context, runID string) ([]scheduler.Telemetry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick_index, elapsed_ns, consumer_count, invocation_count
		FROM ticks
		WHERE run_id = ?
		ORDER BY tick_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	out := []scheduler.Telemetry{}
	for rows.Next() {
		var t scheduler.Telemetry
		var elapsed int64
		if err := rows.Scan(&t.TickIndex, &elapsed, &t.ConsumerCount, &t.InvocationCount); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Elapsed = time.Duration(elapsed)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return out, nil
}

// TickCount returns the number of ticks recorded for a run.
func (s *Store) TickCount(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticks WHERE run_id = ?
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ticks: %w", err)
	}
	return n, nil
}

// LatestSnapshot returns the most recent snapshot of a run. ok is false if
// the run has no snapshots.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (snap Snapshot, ok bool, err error) {
	var tick sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(tick_index) FROM resource_snapshots WHERE run_id = ?
	`, runID).Scan(&tick)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	if !tick.Valid {
		return Snapshot{}, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, value
		FROM resource_snapshots
		WHERE run_id = ? AND tick_index = ?
		ORDER BY node_id COLLATE BINARY ASC
	`, runID, tick.Int64)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	snap = Snapshot{RunID: runID, TickIndex: tick.Int64, Values: make(map[string]float64)}
	for rows.Next() {
		var id string
		var v float64
		if err := rows.Scan(&id, &v); err != nil {
			return Snapshot{}, false, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Values[id] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, fmt.Errorf("iterate snapshot: %w", err)
	}
	return snap, true, nil
}

// LoadModuleState returns the payload for (moduleID, key). ok is false if
// nothing has been saved.
func (s *Store) LoadModuleState(ctx context.Context, moduleID, key string) (payload []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT payload FROM module_state WHERE module_id = ? AND state_key = ?
	`, moduleID, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load module state: %w", err)
	}
	return payload, true, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var tickNS int64
	var startedAt string
	if err := row.Scan(&r.ID, &r.Scenario, &tickNS, &startedAt, &r.Status, &r.TicksCompleted, &r.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.TickDuration = time.Duration(tickNS)

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at for run %q: %w", r.ID, err)
	}
	r.StartedAt = t
	return r, nil
}
