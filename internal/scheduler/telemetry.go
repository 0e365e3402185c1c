package scheduler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Telemetry is emitted once per completed scheduler tick.
type Telemetry struct {
	TickIndex       int64         `json:"tick_index"`
	Elapsed         time.Duration `json:"elapsed"`
	ConsumerCount   int           `json:"consumer_count"`
	InvocationCount int           `json:"invocation_count"`
}

// TelemetrySink receives tick telemetry.
//
// RecordTick is called synchronously on the tick goroutine after the last
// consumer of the tick returns. Sinks must not block; anything that performs
// I/O should hand records off (see ChannelSink).
type TelemetrySink interface {
	RecordTick(Telemetry)
}

// SinkFunc adapts a function into a TelemetrySink.
type SinkFunc func(Telemetry)

// RecordTick calls f.
func (f SinkFunc) RecordTick(t Telemetry) { f(t) }

// ChannelSink forwards telemetry into a buffered channel.
//
// Sends never block: when the buffer is full the record is dropped and the
// drop counter incremented. Close the sink once the scheduler has stopped to
// release readers ranging over C().
type ChannelSink struct {
	ch      chan Telemetry
	dropped atomic.Int64
	once    sync.Once
	closed  atomic.Bool
}

// NewChannelSink creates a sink with the given buffer size (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Telemetry, buffer)}
}

// RecordTick enqueues t or drops it when the buffer is full.
func (s *ChannelSink) RecordTick(t Telemetry) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- t:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side of the channel.
func (s *ChannelSink) C() <-chan Telemetry {
	return s.ch
}

// Dropped returns the number of records discarded.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the channel. Must not race with RecordTick; call it after
// the scheduler loop has returned.
func (s *ChannelSink) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
	})
}

// LogSink logs each tick at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// RecordTick logs t.
func (s LogSink) RecordTick(t Telemetry) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("tick executed",
		"tick", t.TickIndex,
		"consumers", t.ConsumerCount,
		"invocations", t.InvocationCount,
		"elapsed", t.Elapsed,
	)
}
