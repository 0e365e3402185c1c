package skills

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simerr"
)

func newTestScheduler(t *testing.T, sinks ...scheduler.TelemetrySink) *scheduler.Scheduler {
	t.Helper()
	sched, err := scheduler.New(time.Second,
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		scheduler.WithTelemetry(sinks...),
	)
	require.NoError(t, err)
	return sched
}

func TestModule_InitializeRegistersIdleSkill(t *testing.T) {
	ctx := context.Background()
	svc := New(quiet())
	sched := newTestScheduler(t)
	m := NewModule(svc, sched)

	assert.Equal(t, Degraded, m.Health().Status)
	assert.Equal(t, "0", m.Health().Detail["skills"])

	require.NoError(t, m.Initialize(ctx))
	assert.True(t, svc.Registered(IdleSkillID))
	assert.Equal(t, IdleSkillID, svc.ActiveSkill())
	assert.Equal(t, Healthy, m.Health().Status)

	infos := sched.Consumers()
	require.Len(t, infos, 1)
	assert.Equal(t, ConsumerID, infos[0].ID)
	assert.Equal(t, DefaultPriority, infos[0].Priority)

	require.NoError(t, sched.RunTicks(ctx, 3))
	st := svc.Snapshot()
	assert.Equal(t, 3.0, st.TotalCurrency, "idle skill earns 1 per second")
}

func TestModule_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := New(quiet())
	sched := newTestScheduler(t)
	m := NewModule(svc, sched, WithConsumerID("skills"), WithPriority(7))

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))

	infos := sched.Consumers()
	require.Len(t, infos, 1)
	assert.Equal(t, "skills", infos[0].ID)
	assert.Equal(t, 7, infos[0].Priority)
	assert.Len(t, svc.Definitions(), 1)
}

func TestModule_InitializeKeepsActiveSkill(t *testing.T) {
	ctx := context.Background()
	svc := New(quiet())
	require.NoError(t, svc.RegisterSkill(ctx, idling()))
	require.NoError(t, svc.Activate(ctx, "idling"))

	m := NewModule(svc, newTestScheduler(t))
	require.NoError(t, m.Initialize(ctx))

	assert.Equal(t, "idling", svc.ActiveSkill())
	assert.True(t, svc.Registered(IdleSkillID))
}

func TestModule_SetTickMultiplierClamps(t *testing.T) {
	m := NewModule(New(quiet()), newTestScheduler(t))

	tests := []struct {
		in   float64
		want float64
	}{
		{2, 2},
		{100, scheduler.MaxRelativeSpeed},
		{0.001, scheduler.MinRelativeSpeed},
		{-3, scheduler.MinRelativeSpeed},
	}
	for _, tt := range tests {
		got, err := m.SetTickMultiplier(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
		assert.Equal(t, tt.want, m.TickMultiplier())
	}

	_, err := m.SetTickMultiplier(math.NaN())
	assert.True(t, simerr.IsInvalidArgument(err))
	assert.Equal(t, scheduler.MinRelativeSpeed, m.TickMultiplier(), "rejected value has no effect")
}

func TestModule_SetTickMultiplierAppliesFromNextTick(t *testing.T) {
	ctx := context.Background()
	var invocations []int
	sink := scheduler.SinkFunc(func(tm scheduler.Telemetry) {
		invocations = append(invocations, tm.InvocationCount)
	})
	sched := newTestScheduler(t, sink)
	m := NewModule(New(quiet()), sched, WithTickMultiplier(0.5))
	require.NoError(t, m.Initialize(ctx))

	// Half speed: the first tick leaves the accumulator at 0.5.
	require.NoError(t, sched.RunTicks(ctx, 1))

	// Re-applying the same speed resets the accumulator, so the next tick
	// does not fire either.
	_, err := m.SetTickMultiplier(0.5)
	require.NoError(t, err)
	require.NoError(t, sched.RunTicks(ctx, 2))

	_, err = m.SetTickMultiplier(2)
	require.NoError(t, err)
	require.NoError(t, sched.RunTicks(ctx, 1))

	assert.Equal(t, []int{0, 0, 1, 2}, invocations)
	assert.Equal(t, 2.0, sched.Consumers()[0].Rate.RelativeSpeed())
}

func TestModule_SetTickMultiplierBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	sched := newTestScheduler(t)
	m := NewModule(New(quiet()), sched)

	_, err := m.SetTickMultiplier(4)
	require.NoError(t, err)
	assert.Empty(t, sched.Consumers())

	require.NoError(t, m.Initialize(ctx))
	assert.Equal(t, 4.0, sched.Consumers()[0].Rate.RelativeSpeed())
}

func TestService_SavesInChangeOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := New(quiet(), WithStateStore(store))
	require.NoError(t, svc.RegisterSkill(ctx, idling()))
	require.NoError(t, svc.RegisterSkill(ctx, Definition{ID: "mining", Name: "Mining", CurrencyPerSecond: 2}))
	require.NoError(t, svc.Activate(ctx, "idling"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := "idling"
				if (i+j)%2 == 0 {
					id = "mining"
				}
				_ = svc.Activate(ctx, id)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = svc.ProcessTick(ctx, 100*time.Millisecond)
			}
		}()
	}
	wg.Wait()

	payload, ok, err := store.LoadModuleState(ctx, ModuleID, StateKey)
	require.NoError(t, err)
	require.True(t, ok)

	var persisted persistedState
	require.NoError(t, json.Unmarshal(payload, &persisted))
	st := svc.Snapshot()
	assert.Equal(t, st.ActiveSkillID, persisted.ActiveSkillID, "last save reflects the last change")
	assert.Equal(t, st.TotalCurrency, persisted.TotalCurrency)
}
