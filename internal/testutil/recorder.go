package testutil

import (
	"context"
	"sync"

	"github.com/roach88/idlecore/internal/scheduler"
)

// Recorder is a scheduler consumer that records every invocation.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Recorder struct {
	id string

	mu    sync.Mutex
	calls []scheduler.TickContext

	// Log, when set, receives the recorder id on every invocation. Several
	// recorders sharing one Log capture cross-consumer execution order.
	Log *OrderLog

	// Fail, when set, is consulted before recording. A non-nil result is
	// returned from OnTick.
	Fail func(tc scheduler.TickContext) error

	// Hook, when set, runs after recording and before returning.
	Hook func(tc scheduler.TickContext)
}

// NewRecorder creates a recorder with the given consumer id.
func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

// ID implements scheduler.Consumer.
func (r *Recorder) ID() string { return r.id }

// OnTick implements scheduler.Consumer.
func (r *Recorder) OnTick(_ context.Context, tc scheduler.TickContext) error {
	if r.Fail != nil {
		if err := r.Fail(tc); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.calls = append(r.calls, tc)
	r.mu.Unlock()

	if r.Log != nil {
		r.Log.Append(r.id)
	}
	if r.Hook != nil {
		r.Hook(tc)
	}
	return nil
}

// Calls returns a copy of the recorded invocations.
func (r *Recorder) Calls() []scheduler.TickContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scheduler.TickContext, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns the number of recorded invocations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// OrderLog is an append-only, concurrency-safe list of consumer ids.
type OrderLog struct {
	mu  sync.Mutex
	ids []string
}

// Append records id.
func (l *OrderLog) Append(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

// IDs returns a copy of the recorded ids.
func (l *OrderLog) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}
