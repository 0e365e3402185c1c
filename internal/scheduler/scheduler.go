package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/idlecore/internal/clock"
	"github.com/roach88/idlecore/internal/simerr"
)

// Scheduler drives registered consumers on a fixed timestep.
//
// Thread-safety model:
//   - RegisterConsumer, UnregisterConsumer, UpdateConsumerRate,
//     UpdateTickDuration and the introspection methods are safe from any
//     goroutine, including from inside a consumer's OnTick.
//   - RunTicks and RunContinuously drive ticks; only one may run at a time.
//
// INVARIANTS:
//   - buckets is sorted by ascending priority and never holds an empty bucket
//   - consumer ids are unique across all buckets
//   - consumers are never invoked while mu is held
type Scheduler struct {
	mu      sync.Mutex
	buckets []*bucket
	byID    map[string]*registration

	tickDuration atomic.Int64
	tickIndex    atomic.Int64
	running      atomic.Bool

	clock  clock.Clock
	logger *slog.Logger
	sinks  []TelemetrySink
}

type bucket struct {
	priority int
	regs     []*registration
}

// registration is one consumer's slot. accumulator and profile are guarded by
// Scheduler.mu.
type registration struct {
	consumer    Consumer
	priority    int
	profile     RateProfile
	accumulator float64
}

// ConsumerInfo describes a registered consumer.
type ConsumerInfo struct {
	ID       string
	Priority int
	Rate     RateProfile
}

// ConsumerError reports a consumer failure that aborted a tick.
type ConsumerError struct {
	ConsumerID string
	TickIndex  int64
	Err        error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("consumer %q failed on tick %d: %v", e.ConsumerID, e.TickIndex, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for tick timestamps and elapsed time.
//
// Default: clock.System{}
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the scheduler's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTelemetry appends telemetry sinks. Sinks are called in order after
// every completed tick.
func WithTelemetry(sinks ...TelemetrySink) Option {
	return func(s *Scheduler) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// RegisterOption configures a single RegisterConsumer call.
type RegisterOption func(*registration)

// WithPriority sets the execution priority. Lower values run first.
// Default: 0.
func WithPriority(priority int) RegisterOption {
	return func(r *registration) {
		r.priority = priority
	}
}

// WithRate sets the consumer's rate profile. Default: NormalRate.
func WithRate(profile RateProfile) RegisterOption {
	return func(r *registration) {
		r.profile = profile
	}
}

// New creates a Scheduler with the given baseline tick duration.
//
// Returns an invalid-argument error if tickDuration is not positive.
func New(tickDuration time.Duration, opts ...Option) (*Scheduler, error) {
	if tickDuration <= 0 {
		return nil, simerr.InvalidArgument("New", "tick duration must be positive",
			"tick_duration", tickDuration.String())
	}

	s := &Scheduler{
		byID:   make(map[string]*registration),
		clock:  clock.System{},
		logger: slog.Default(),
	}
	s.tickDuration.Store(int64(tickDuration))

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// RegisterConsumer adds a consumer to the pipeline.
//
// Returns an invalid-argument error for a nil consumer or empty id and an
// invalid-operation error if the id is already registered at any priority.
// A rejected registration leaves the table unchanged.
func (s *Scheduler) RegisterConsumer(c Consumer, opts ...RegisterOption) error {
	if c == nil {
		return simerr.InvalidArgument("RegisterConsumer", "consumer is nil")
	}
	id := c.ID()
	if id == "" {
		return simerr.InvalidArgument("RegisterConsumer", "consumer id is empty")
	}

	reg := &registration{consumer: c, profile: NormalRate}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.profile.label == "" {
		// Zero-value RateProfile: treat as normal.
		reg.profile = NormalRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; exists {
		return simerr.InvalidOperation("RegisterConsumer", "consumer already registered", "consumer", id)
	}

	b := s.bucketFor(reg.priority)
	b.regs = append(b.regs, reg)
	s.byID[id] = reg

	s.logger.Debug("consumer registered",
		"consumer", id,
		"priority", reg.priority,
		"rate", reg.profile.label,
	)
	return nil
}

// UnregisterConsumer removes a consumer. Returns whether it was registered.
//
// A consumer removed while a tick is in progress may still be invoked during
// that tick; it is absent from every later tick.
func (s *Scheduler) UnregisterConsumer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)

	for bi, b := range s.buckets {
		if b.priority != reg.priority {
			continue
		}
		for ri, r := range b.regs {
			if r == reg {
				b.regs = append(b.regs[:ri], b.regs[ri+1:]...)
				break
			}
		}
		if len(b.regs) == 0 {
			s.buckets = append(s.buckets[:bi], s.buckets[bi+1:]...)
		}
		break
	}

	s.logger.Debug("consumer unregistered", "consumer", id)
	return true
}

// UpdateConsumerRate replaces a consumer's rate profile and resets its
// accumulator. Returns false if the consumer is not registered.
//
// A change made while a tick is in progress applies from the next tick.
func (s *Scheduler) UpdateConsumerRate(id string, profile RateProfile) bool {
	if profile.label == "" {
		profile = NormalRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.byID[id]
	if !ok {
		return false
	}
	reg.profile = profile
	reg.accumulator = 0

	s.logger.Debug("consumer rate updated", "consumer", id, "rate", profile.label)
	return true
}

// UpdateTickDuration swaps the baseline tick duration. Takes effect on the
// next tick. Accumulators are measured in ticks and are unaffected.
func (s *Scheduler) UpdateTickDuration(d time.Duration) error {
	if d <= 0 {
		return simerr.InvalidArgument("UpdateTickDuration", "tick duration must be positive",
			"tick_duration", d.String())
	}
	s.tickDuration.Store(int64(d))
	return nil
}

// TickDuration returns the current baseline tick duration.
func (s *Scheduler) TickDuration() time.Duration {
	return time.Duration(s.tickDuration.Load())
}

// TickIndex returns the index the next tick will carry, which equals the
// number of completed ticks.
func (s *Scheduler) TickIndex() int64 {
	return s.tickIndex.Load()
}

// Consumers lists registered consumers in execution order.
func (s *Scheduler) Consumers() []ConsumerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ConsumerInfo, 0, len(s.byID))
	for _, b := range s.buckets {
		for _, r := range b.regs {
			out = append(out, ConsumerInfo{
				ID:       r.consumer.ID(),
				Priority: r.priority,
				Rate:     r.profile,
			})
		}
	}
	return out
}

// RunTicks executes exactly count ticks back to back.
//
// Returns an invalid-argument error if count is not positive, ctx.Err() if
// the context is cancelled between ticks, or the first consumer error.
func (s *Scheduler) RunTicks(ctx context.Context, count int) error {
	if count <= 0 {
		return simerr.InvalidArgument("RunTicks", "tick count must be positive",
			"count", fmt.Sprint(count))
	}
	if err := s.acquire("RunTicks"); err != nil {
		return err
	}
	defer s.running.Store(false)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.runSingleTick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunContinuously executes ticks until ctx is cancelled or a consumer fails.
//
// After each tick it sleeps for the remainder of the tick duration. The sleep
// ends immediately on cancellation; an in-flight tick always completes and no
// tick starts after cancellation. Returns ctx.Err() on cancellation.
func (s *Scheduler) RunContinuously(ctx context.Context) error {
	if err := s.acquire("RunContinuously"); err != nil {
		return err
	}
	defer s.running.Store(false)

	s.logger.Info("scheduler starting", "tick_duration", s.TickDuration())

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler stopping: context cancelled", "ticks", s.TickIndex())
			return err
		}

		elapsed, err := s.runSingleTick(ctx)
		if err != nil {
			s.logger.Error("scheduler stopping: consumer failed", "error", err)
			return err
		}

		wait := s.TickDuration() - elapsed
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// acquire marks the scheduler as running.
func (s *Scheduler) acquire(op string) error {
	if !s.running.CompareAndSwap(false, true) {
		return simerr.InvalidOperation(op, "scheduler is already running")
	}
	return nil
}

// accumulatorEpsilon absorbs float error so speeds like 0.1 fire on exactly
// every tenth tick.
const accumulatorEpsilon = 1e-9

// planned is one consumer's work for the current tick.
type planned struct {
	consumer Consumer
	speed    float64
	count    int
}

// runSingleTick executes one tick and returns its elapsed time.
func (s *Scheduler) runSingleTick(ctx context.Context) (time.Duration, error) {
	tickDuration := s.TickDuration()
	tickIndex := s.tickIndex.Load()
	start := s.clock.Now()

	plan := s.plan()

	invocations := 0
	for _, p := range plan {
		if p.count == 0 {
			continue
		}
		tc := TickContext{
			TickIndex:         tickIndex,
			TickDuration:      tickDuration,
			Time:              start,
			EffectiveDuration: effectiveDuration(tickDuration, p.speed),
			RelativeSpeed:     p.speed,
		}
		for i := 0; i < p.count; i++ {
			if err := p.consumer.OnTick(ctx, tc); err != nil {
				return 0, &ConsumerError{ConsumerID: p.consumer.ID(), TickIndex: tickIndex, Err: err}
			}
			invocations++
		}
	}

	elapsed := s.clock.Now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	t := Telemetry{
		TickIndex:       tickIndex,
		Elapsed:         elapsed,
		ConsumerCount:   len(plan),
		InvocationCount: invocations,
	}
	for _, sink := range s.sinks {
		sink.RecordTick(t)
	}

	s.tickIndex.Add(1)
	return elapsed, nil
}

// plan snapshots the registration table and advances every accumulator.
//
// Accumulation happens under the lock so that rate updates racing with the
// tick either land before the snapshot or apply from the next tick.
func (s *Scheduler) plan() []planned {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]planned, 0, len(s.byID))
	for _, b := range s.buckets {
		for _, r := range b.regs {
			speed := r.profile.relativeSpeed
			p := planned{consumer: r.consumer, speed: speed}
			if speed > 0 {
				r.accumulator += speed
				n := math.Floor(r.accumulator + accumulatorEpsilon)
				if n > 0 {
					r.accumulator -= n
					p.count = int(n)
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// bucketFor returns the bucket for priority, creating it in sorted position.
// Caller must hold s.mu.
func (s *Scheduler) bucketFor(priority int) *bucket {
	i := sort.Search(len(s.buckets), func(i int) bool {
		return s.buckets[i].priority >= priority
	})
	if i < len(s.buckets) && s.buckets[i].priority == priority {
		return s.buckets[i]
	}

	b := &bucket{priority: priority}
	s.buckets = append(s.buckets, nil)
	copy(s.buckets[i+1:], s.buckets[i:])
	s.buckets[i] = b
	return b
}
