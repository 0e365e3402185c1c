package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simulation"
	"github.com/roach88/idlecore/internal/store"
)

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openStore(path string) (*store.Store, func(), error) {
	slog.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return st, closeFn, nil
}

func runIDGenerator(gen store.RunIDGenerator) store.RunIDGenerator {
	if gen == nil {
		return store.UUIDv7Generator{}
	}
	return gen
}

// journalBatch writes a completed batch run: the run row, every tick's
// telemetry and the stock snapshot recorded after it.
func journalBatch(
	ctx context.Context,
	opts *SimulateOptions,
	scenarioName string,
	tickDuration time.Duration,
	result *simulation.Result,
	telemetry []scheduler.Telemetry,
	runErr error,
) (string, error) {
	st, closeStore, err := openStore(opts.Database)
	if err != nil {
		return "", err
	}
	defer closeStore()

	runID := runIDGenerator(opts.RunIDGenerator).Generate()
	if err := st.BeginRun(ctx, store.Run{
		ID:           runID,
		Scenario:     scenarioName,
		TickDuration: tickDuration,
	}); err != nil {
		return "", err
	}

	for i, t := range telemetry {
		if err := st.WriteTick(ctx, runID, t); err != nil {
			return "", err
		}
		if i < len(result.Trace) {
			rec := result.Trace[i]
			if err := st.WriteSnapshot(ctx, runID, rec.Tick, rec.Stocks); err != nil {
				return "", err
			}
		}
	}

	status := store.StatusCompleted
	if runErr != nil {
		status = store.StatusFailed
	}
	if err := st.FinishRun(ctx, runID, status, int64(result.Ticks), runErr); err != nil {
		return "", fmt.Errorf("finish run %s: %w", runID, err)
	}
	slog.Debug("run journaled", "run_id", runID, "ticks", result.Ticks, "status", status)
	return runID, nil
}
