package metrics

import (
	"github.com/roach88/idlecore/internal/scheduler"
)

// RecordTick implements scheduler.TelemetrySink.
func (r *Registry) RecordTick(t scheduler.Telemetry) {
	r.TicksTotal.Inc()
	r.TickDuration.Observe(t.Elapsed.Seconds())
	r.TickConsumers.Set(float64(t.ConsumerCount))
	r.InvocationsTotal.Add(float64(t.InvocationCount))
}

// ObserveResources sets the stock gauge for every node in state.
func (r *Registry) ObserveResources(state map[string]float64) {
	for node, v := range state {
		r.ResourceStock.WithLabelValues(node).Set(v)
	}
}

// SetDropped records the cumulative drop count of a channel sink.
func (r *Registry) SetDropped(n int64) {
	r.DroppedTicks.Set(float64(n))
}

var _ scheduler.TelemetrySink = (*Registry)(nil)
