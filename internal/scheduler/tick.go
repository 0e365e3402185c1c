package scheduler

import (
	"context"
	"time"
)

// TickContext describes one consumer invocation. Constructed fresh per
// invocation; never retained by the scheduler.
type TickContext struct {
	// TickIndex is the monotonic scheduler tick number starting at zero.
	TickIndex int64

	// TickDuration is the scheduler's baseline tick duration.
	TickDuration time.Duration

	// Time is the wall-clock time captured once at the start of the tick.
	// All invocations within one tick observe the same value.
	Time time.Time

	// EffectiveDuration is the simulated time span this invocation represents:
	// TickDuration / RelativeSpeed.
	EffectiveDuration time.Duration

	// RelativeSpeed is the consumer's rate multiplier.
	RelativeSpeed float64
}

// Consumer participates in the tick pipeline.
type Consumer interface {
	// ID uniquely identifies the consumer across the scheduler.
	ID() string

	// OnTick runs one invocation. A returned error aborts the tick.
	OnTick(ctx context.Context, tc TickContext) error
}

// ConsumerFunc adapts a function into a Consumer.
type ConsumerFunc struct {
	Name string
	Fn   func(ctx context.Context, tc TickContext) error
}

// ID returns the consumer name.
func (f ConsumerFunc) ID() string { return f.Name }

// OnTick calls Fn.
func (f ConsumerFunc) OnTick(ctx context.Context, tc TickContext) error {
	return f.Fn(ctx, tc)
}

// effectiveDuration converts the baseline duration into the per-invocation
// span, rounded to the nearest nanosecond and never below one.
func effectiveDuration(tickDuration time.Duration, relativeSpeed float64) time.Duration {
	d := time.Duration(float64(tickDuration)/relativeSpeed + 0.5)
	if d < 1 {
		return 1
	}
	return d
}
