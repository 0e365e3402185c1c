package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/idlecore/internal/scheduler"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Run is one simulation run.
type Run struct {
	ID             string        `json:"id"`
	Scenario       string        `json:"scenario"`
	TickDuration   time.Duration `json:"tick_duration"`
	StartedAt      time.Time     `json:"started_at"`
	Status         string        `json:"status"`
	TicksCompleted int64         `json:"ticks_completed"`
	Error          string        `json:"error,omitempty"`
}

// BeginRun inserts a run in the running state.
//
// Returns an error if the id is already used or the tick duration is not
// positive (CHECK constraint).
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, tick_duration_ns, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		int64(run.TickDuration),
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, runID, status string, ticksCompleted int64, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, ticks_completed = ?, error = ?
		WHERE id = ?
	`, status, ticksCompleted, msg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// WriteTick records one tick's telemetry.
// Uses ON CONFLICT DO NOTHING for idempotency.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteTick(ctx context.Context, runID string, t scheduler.Telemetry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticks (run_id, tick_index, elapsed_ns, consumer_count, invocation_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		t.TickIndex,
		int64(t.Elapsed),
		t.ConsumerCount,
		t.InvocationCount,
	)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	return nil
}

// WriteSnapshot records node stocks captured after tickIndex in a single
// transaction. Rows are inserted in node id order.
func (s *Store) WriteSnapshot(ctx context.Context, runID string, tickIndex int64, state map[string]float64) error {
	nodes := make([]string, 0, len(state))
	for id := range state {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resource_snapshots (run_id, tick_index, node_id, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write snapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range nodes {
		if _, err := stmt.ExecContext(ctx, runID, tickIndex, id, state[id]); err != nil {
			return fmt.Errorf("write snapshot: node %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshot: commit: %w", err)
	}
	return nil
}

// SaveModuleState upserts an opaque payload for (moduleID, key).
func (s *Store) SaveModuleState(ctx context.Context, moduleID, key string, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module_state (module_id, state_key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (module_id, state_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, moduleID, key, payload, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save module state: %w", err)
	}
	return nil
}

// DeleteModuleState removes a payload. Missing keys are not an error.
func (s *Store) DeleteModuleState(ctx context.Context, moduleID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM module_state WHERE module_id = ? AND state_key = ?
	`, moduleID, key)
	if err != nil {
		return fmt.Errorf("delete module state: %w", err)
	}
	return nil
}
