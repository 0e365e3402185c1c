// Package scheduler implements the fixed-timestep tick scheduler.
//
// A Scheduler owns a priority-ordered table of registered consumers. Each
// scheduler tick walks the table in ascending priority (registration order
// within a priority) and invokes every consumer zero or more times depending
// on its relative speed.
//
// # Rate Accumulation
//
// Every registration carries a fractional accumulator measured in tick
// units. Per tick the consumer's relative speed is added; the integer part is
// the number of invocations this tick and is subtracted, the remainder
// carries over. A speed of 0.25 fires every fourth tick, a speed of 4 fires
// four times per tick, and neither drifts over long runs.
//
// Each invocation receives a TickContext whose EffectiveDuration is
// tickDuration/relativeSpeed, so a consumer that integrates over
// EffectiveDuration (resource generation, experience gain) accrues the same
// simulated time per wall tick regardless of its speed.
//
// # Concurrency
//
// One goroutine drives RunTicks or RunContinuously at a time. Consumers are
// invoked sequentially on that goroutine and never while the scheduler's
// registration lock is held. Registration changes made during a tick take
// effect on the next tick.
//
// # Failure Semantics
//
// Consumer errors are not isolated. The first error aborts the tick and is
// returned to the caller of RunTicks/RunContinuously; recovery policy belongs
// to whoever drives the loop.
package scheduler
