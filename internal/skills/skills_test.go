package skills

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simerr"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	loadErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) SaveModuleState(_ context.Context, moduleID, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data[moduleID+"/"+key] = append([]byte(nil), payload...)
	return nil
}

func (m *memStore) LoadModuleState(_ context.Context, moduleID, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	v, ok := m.data[moduleID+"/"+key]
	return v, ok, nil
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func idling() Definition {
	return Definition{ID: "idling", Name: "Idling", Description: "Do nothing.", CurrencyPerSecond: 1}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		xp   float64
		want int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{50, 7},
		{100, 10},
		{400, 20},
		{10_000, 100},
		{1e6, MaxLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.xp), "xp=%v", tt.xp)
	}
}

func TestRegisterSkill_Validation(t *testing.T) {
	ctx := context.Background()
	s := New(quiet())

	err := s.RegisterSkill(ctx, Definition{ID: " ", Name: "x", CurrencyPerSecond: 1})
	assert.True(t, simerr.IsInvalidArgument(err))

	err = s.RegisterSkill(ctx, Definition{ID: "a", Name: "", CurrencyPerSecond: 1})
	assert.True(t, simerr.IsInvalidArgument(err))

	err = s.RegisterSkill(ctx, Definition{ID: "a", Name: "A", CurrencyPerSecond: 0})
	assert.True(t, simerr.IsInvalidArgument(err))

	require.NoError(t, s.RegisterSkill(ctx, idling()))

	dup := idling()
	dup.ID = "IDLING"
	err = s.RegisterSkill(ctx, dup)
	assert.True(t, simerr.IsInvalidOperation(err), "ids are case-insensitive")

	assert.Len(t, s.Definitions(), 1)
}

func TestDefinitions_SortedByName(t *testing.T) {
	ctx := context.Background()
	s := New(quiet())
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "z", Name: "Alchemy", CurrencyPerSecond: 2}))
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "a", Name: "Mining", CurrencyPerSecond: 1}))

	defs := s.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "Alchemy", defs[0].Name)
	assert.Equal(t, "Mining", defs[1].Name)
}

func TestActivate_UnknownSkill(t *testing.T) {
	s := New(quiet())
	err := s.Activate(context.Background(), "ghost")
	assert.True(t, simerr.IsInvalidOperation(err))

	err = s.Activate(context.Background(), "")
	assert.True(t, simerr.IsInvalidArgument(err))
}

func TestActivate_MatchesNormalisedID(t *testing.T) {
	ctx := context.Background()
	s := New(quiet())
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "caf\u00e9", Name: "Brewing", CurrencyPerSecond: 1}))

	// Decomposed and upper-cased spelling of the same id.
	decomposed := "CAFE\u0301"
	assert.True(t, s.Registered(decomposed))
	require.NoError(t, s.Activate(ctx, decomposed))
	assert.Equal(t, "caf\u00e9", s.ActiveSkill())

	err := s.RegisterSkill(ctx, Definition{ID: decomposed, Name: "Again", CurrencyPerSecond: 1})
	assert.True(t, simerr.IsInvalidOperation(err))
	assert.Len(t, s.Definitions(), 1)
}

func TestProcessTick_GrantsActiveSkill(t *testing.T) {
	ctx := context.Background()
	s := New(quiet())
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "mining", Name: "Mining", CurrencyPerSecond: 2}))
	require.NoError(t, s.RegisterSkill(ctx, idling()))

	// No active skill: nothing accrues.
	require.NoError(t, s.ProcessTick(ctx, time.Second))
	assert.Equal(t, 0.0, s.Snapshot().TotalCurrency)

	require.NoError(t, s.Activate(ctx, "Mining"))
	require.NoError(t, s.ProcessTick(ctx, 1500*time.Millisecond))

	st := s.Snapshot()
	assert.Equal(t, "mining", st.ActiveSkillID)
	assert.Equal(t, 3.0, st.TotalCurrency)
	require.Len(t, st.Skills, 2)
	assert.Equal(t, Progress{SkillID: "idling", Level: 1}, st.Skills[0])
	assert.Equal(t, Progress{SkillID: "mining", Experience: 3, Level: 1, BankedCurrency: 3}, st.Skills[1])
}

func TestConsumer_IntegratesEffectiveDuration(t *testing.T) {
	ctx := context.Background()
	s := New(quiet())
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "mining", Name: "Mining", CurrencyPerSecond: 25}))
	require.NoError(t, s.Activate(ctx, "mining"))

	sched, err := scheduler.New(time.Second, scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	half, err := scheduler.NewRateProfile(0.5, "")
	require.NoError(t, err)
	require.NoError(t, sched.RegisterConsumer(s.Consumer(),
		scheduler.WithPriority(DefaultPriority), scheduler.WithRate(half)))

	// Four ticks at half speed: two invocations of 2s each.
	require.NoError(t, sched.RunTicks(ctx, 4))

	st := s.Snapshot()
	assert.Equal(t, 100.0, st.TotalCurrency)
	assert.Equal(t, 10, st.Skills[0].Level)
	assert.Equal(t, ConsumerID, sched.Consumers()[0].ID)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	s := New(WithStateStore(store), quiet())
	require.NoError(t, s.RegisterSkill(ctx, idling()))
	require.NoError(t, s.Activate(ctx, "idling"))
	require.NoError(t, s.ProcessTick(ctx, 10*time.Second))
	assert.Equal(t, 3, store.saves)

	raw, ok, err := store.LoadModuleState(ctx, ModuleID, StateKey)
	require.NoError(t, err)
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "idling", decoded["activeSkillId"])
	assert.Equal(t, 10.0, decoded["totalCurrency"])

	restored := New(WithStateStore(store), quiet())
	require.True(t, restored.Restore(ctx))
	require.NoError(t, restored.RegisterSkill(ctx, idling()))
	assert.Equal(t, s.Snapshot(), restored.Snapshot())

	// Restored active skill keeps accruing.
	require.NoError(t, restored.ProcessTick(ctx, time.Second))
	assert.Equal(t, 11.0, restored.Snapshot().TotalCurrency)
}

func TestRestore_IgnoresFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no store", func(t *testing.T) {
		assert.False(t, New(quiet()).Restore(ctx))
	})

	t.Run("missing payload", func(t *testing.T) {
		assert.False(t, New(WithStateStore(newMemStore()), quiet()).Restore(ctx))
	})

	t.Run("corrupt payload", func(t *testing.T) {
		store := newMemStore()
		require.NoError(t, store.SaveModuleState(ctx, ModuleID, StateKey, []byte("{not json")))
		s := New(WithStateStore(store), quiet())
		assert.False(t, s.Restore(ctx))
		assert.Equal(t, 0.0, s.Snapshot().TotalCurrency)
	})

	t.Run("load error", func(t *testing.T) {
		store := newMemStore()
		store.loadErr = errors.New("disk gone")
		assert.False(t, New(WithStateStore(store), quiet()).Restore(ctx))
	})
}

func TestProcessTick_PropagatesSaveError(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := New(WithStateStore(store), quiet())
	require.NoError(t, s.RegisterSkill(ctx, idling()))
	require.NoError(t, s.Activate(ctx, "idling"))

	boom := errors.New("disk full")
	store.saveErr = boom

	err := s.ProcessTick(ctx, time.Second)
	assert.ErrorIs(t, err, boom)
	// Progress is applied in memory even when saving fails.
	assert.Equal(t, 1.0, s.Snapshot().TotalCurrency)

	// Registration persistence is best-effort.
	require.NoError(t, s.RegisterSkill(ctx, Definition{ID: "b", Name: "B", CurrencyPerSecond: 1}))
}
