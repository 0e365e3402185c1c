package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/roach88/idlecore/internal/clock"
	"github.com/roach88/idlecore/internal/scenario"
	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/skills"
)

// TickRecord is one completed tick in a Result trace.
type TickRecord struct {
	Tick        int64              `json:"tick"`
	Consumers   int                `json:"consumers"`
	Invocations int                `json:"invocations"`
	Stocks      map[string]float64 `json:"stocks"`
}

// Result is the outcome of a deterministic run.
type Result struct {
	Scenario string             `json:"scenario"`
	Ticks    int                `json:"ticks"`
	Trace    []TickRecord       `json:"trace"`
	Final    map[string]float64 `json:"final"`
	Skills   *skills.State      `json:"skills,omitempty"`
}

// Run builds sc and executes sc.Ticks ticks back to back.
//
// On a consumer error the partial Result (ticks completed so far, stocks at
// the point of failure) is returned together with the error.
func Run(ctx context.Context, sc *scenario.Scenario, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	if cfg.clock == nil {
		cfg.clock = clock.NewDeterministic(time.Unix(0, 0).UTC())
	}

	rec := &traceRecorder{}
	cfg.sinks = append(cfg.sinks, rec)

	sim, err := build(ctx, sc, cfg)
	if err != nil {
		return nil, err
	}
	rec.bind(sim)

	runErr := sim.Scheduler.RunTicks(ctx, sc.Ticks)
	return rec.result(sim), runErr
}

// traceRecorder captures graph state after every tick. RecordTick runs on
// the tick goroutine after the last consumer returns, so the export is
// consistent with the telemetry.
type traceRecorder struct {
	mu    sync.Mutex
	sim   *Simulation
	trace []TickRecord
}

func (r *traceRecorder) bind(sim *Simulation) {
	r.mu.Lock()
	r.sim = sim
	r.mu.Unlock()
}

func (r *traceRecorder) RecordTick(t scheduler.Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sim == nil {
		return
	}
	r.trace = append(r.trace, TickRecord{
		Tick:        t.TickIndex,
		Consumers:   t.ConsumerCount,
		Invocations: t.InvocationCount,
		Stocks:      roundAll(r.sim.Graph.ExportState()),
	})
}

func (r *traceRecorder) result(sim *Simulation) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &Result{
		Scenario: sim.Scenario.Name,
		Ticks:    len(r.trace),
		Trace:    append([]TickRecord{}, r.trace...),
		Final:    roundAll(sim.Graph.ExportState()),
	}
	if sim.Skills != nil {
		st := sim.Skills.Snapshot()
		st.TotalCurrency = round(st.TotalCurrency)
		for i := range st.Skills {
			st.Skills[i].Experience = round(st.Skills[i].Experience)
			st.Skills[i].BankedCurrency = round(st.Skills[i].BankedCurrency)
		}
		res.Skills = &st
	}
	return res
}

const precision = 1e9

func round(v float64) float64 {
	return math.Round(v*precision) / precision
}

func roundAll(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round(v)
	}
	return out
}
