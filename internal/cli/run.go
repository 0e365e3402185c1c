package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idlecore/internal/metrics"
	"github.com/roach88/idlecore/internal/resources"
	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simulation"
	"github.com/roach88/idlecore/internal/store"
)

// telemetryBuffer is the ChannelSink capacity between the tick loop and the
// journal writer.
const telemetryBuffer = 1024

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	MetricsAddr   string
	Duration      time.Duration
	TickDuration  time.Duration
	SnapshotEvery int

	// RunIDGenerator allows overriding run ids (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator
}

// RunSummary is printed when a continuous run stops.
type RunSummary struct {
	RunID    string             `json:"run_id"`
	Scenario string             `json:"scenario"`
	Status   string             `json:"status"`
	Ticks    int64              `json:"ticks"`
	Dropped  int64              `json:"dropped_telemetry"`
	Final    map[string]float64 `json:"final"`
}

func (r RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s): %s after %d tick(s)", r.RunID, r.Scenario, r.Status, r.Ticks)
	if r.Dropped > 0 {
		fmt.Fprintf(&b, ", %d telemetry record(s) dropped", r.Dropped)
	}
	writeStocks(&b, r.Final)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario in real time",
		Long: `Run a scenario on the wall clock until interrupted.

The scheduler ticks at the scenario's cadence (or --tick-duration),
sleeping between ticks. Telemetry is handed off through a buffered channel
to a writer that journals ticks and periodic resource snapshots (--db) and
updates Prometheus gauges (--metrics-addr). SIGINT or SIGTERM stops the
loop after the current tick; --duration stops it after a fixed time.

Example:
  idlecore run --db ./idle.db scenarios/economy.cue
  idlecore run --metrics-addr :9090 --duration 1m scenarios/smelter.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContinuous(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&opts.TickDuration, "tick-duration", 0, "override the scenario tick duration")
	cmd.Flags().IntVar(&opts.SnapshotEvery, "snapshot-every", 10, "journal a resource snapshot every N ticks")

	return cmd
}

func runContinuous(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := configureLogging(opts.RootOptions)
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.SnapshotEvery <= 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("--snapshot-every must be positive, got %d", opts.SnapshotEvery), nil)
	}
	if opts.Duration < 0 || opts.TickDuration < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "durations must not be negative", nil)
	}

	sc, err := loadOrFail(formatter, path)
	if err != nil {
		return err
	}

	parentCtx := commandContext(cmd)

	var st *store.Store
	if opts.Database != "" {
		var closeStore func()
		st, closeStore, err = openStore(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
		}
		defer closeStore()
	}

	reg := metrics.NewRegistry()
	sink := scheduler.NewChannelSink(telemetryBuffer)
	snaps := newSnapshotter(opts.SnapshotEvery)

	simOpts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithTelemetry(sink, reg, snaps, scheduler.LogSink{Logger: logger}),
	}
	if st != nil {
		simOpts = append(simOpts, simulation.WithStateStore(st))
	}
	sim, err := simulation.Build(parentCtx, sc, simOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to build simulation", err)
	}
	snaps.graph = sim.Graph

	if opts.TickDuration > 0 {
		if err := sim.Scheduler.UpdateTickDuration(opts.TickDuration); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid tick duration", err)
		}
	}

	if opts.MetricsAddr != "" {
		srv, err := metrics.Listen(opts.MetricsAddr, reg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to start metrics server", err)
		}
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				slog.Error("error stopping metrics server", "error", err)
			}
		}()
	}

	// BeginRun comes last: every path after it reaches FinishRun.
	runID := runIDGenerator(opts.RunIDGenerator).Generate()
	if st != nil {
		if err := st.BeginRun(parentCtx, store.Run{
			ID:           runID,
			Scenario:     sc.Name,
			TickDuration: sim.Scheduler.TickDuration(),
		}); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to record run", err)
		}
	}

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.Duration)
		defer cancelTimeout()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Journal writes outlive the run context so the tail of the buffer is
	// still flushed after cancellation.
	writeCtx := context.WithoutCancel(parentCtx)
	w := &journalWriter{st: st, runID: runID, reg: reg, sink: sink, snaps: snaps.out}
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.drain(writeCtx)
	}()

	slog.Info("run starting",
		"run_id", runID,
		"scenario", sc.Name,
		"tick_duration", sim.Scheduler.TickDuration(),
		"consumers", len(sim.Scheduler.Consumers()),
	)

	runErr := sim.Scheduler.RunContinuously(ctx)

	// The tick loop has returned: no sink is called after this point.
	sink.Close()
	close(snaps.out)
	<-done

	ticks := sim.Scheduler.TickIndex()
	final := sim.Graph.ExportState()
	reg.ObserveResources(final)

	status, failure := classifyStop(runErr, opts.Duration > 0)
	slog.Info("run stopped", "run_id", runID, "status", status, "ticks", ticks, "dropped", sink.Dropped())

	if st != nil {
		if ticks > 0 {
			if err := st.WriteSnapshot(writeCtx, runID, ticks-1, final); err != nil {
				slog.Error("failed to write final snapshot", "error", err)
			}
		}
		if err := st.FinishRun(writeCtx, runID, status, ticks, failure); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to finish run", err)
		}
	}

	if failure != nil {
		return formatter.Fail(ExitFailure, ErrCodeRunFailed, "run failed", failure)
	}

	return formatter.Success(RunSummary{
		RunID:    runID,
		Scenario: sc.Name,
		Status:   status,
		Ticks:    ticks,
		Dropped:  sink.Dropped(),
		Final:    final,
	})
}

// classifyStop maps RunContinuously's return value onto a run status. A
// deadline counts as completion only when --duration set it.
func classifyStop(err error, timed bool) (string, error) {
	switch {
	case err == nil:
		return store.StatusCompleted, nil
	case errors.Is(err, context.DeadlineExceeded) && timed:
		return store.StatusCompleted, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return store.StatusCancelled, nil
	default:
		return store.StatusFailed, err
	}
}

type snapshot struct {
	tick   int64
	stocks map[string]float64
}

// snapshotter captures graph stocks on the tick goroutine every n ticks, so
// each snapshot matches the tick it is labelled with. Sends never block.
type snapshotter struct {
	graph *resources.Graph
	every int64
	out   chan snapshot
}

func newSnapshotter(every int) *snapshotter {
	return &snapshotter{every: int64(every), out: make(chan snapshot, 64)}
}

func (s *snapshotter) RecordTick(t scheduler.Telemetry) {
	if s.graph == nil || (t.TickIndex+1)%s.every != 0 {
		return
	}
	select {
	case s.out <- snapshot{tick: t.TickIndex, stocks: s.graph.ExportState()}:
	default:
		slog.Warn("snapshot dropped, journal writer is behind", "tick", t.TickIndex)
	}
}

// journalWriter drains telemetry and snapshots off the tick goroutine.
// Without a store it only feeds metrics.
type journalWriter struct {
	st    *store.Store
	runID string
	reg   *metrics.Registry
	sink  *scheduler.ChannelSink
	snaps <-chan snapshot
}

func (w *journalWriter) drain(ctx context.Context) {
	ticks, snaps := w.sink.C(), w.snaps
	for ticks != nil || snaps != nil {
		select {
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			w.reg.SetDropped(w.sink.Dropped())
			if w.st == nil {
				continue
			}
			if err := w.st.WriteTick(ctx, w.runID, t); err != nil {
				slog.Warn("failed to journal tick", "tick", t.TickIndex, "error", err)
			}
		case s, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			w.reg.ObserveResources(s.stocks)
			if w.st == nil {
				continue
			}
			if err := w.st.WriteSnapshot(ctx, w.runID, s.tick, s.stocks); err != nil {
				slog.Warn("failed to journal snapshot", "tick", s.tick, "error", err)
			}
		}
	}
}
