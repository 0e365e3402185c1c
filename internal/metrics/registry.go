// Package metrics exposes scheduler and resource telemetry to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all idlecore metrics on a private Prometheus registry, so
// several simulations (or tests) in one process never collide.
type Registry struct {
	registry *prometheus.Registry

	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	TickConsumers    prometheus.Gauge
	InvocationsTotal prometheus.Counter
	DroppedTicks     prometheus.Gauge
	ResourceStock    *prometheus.GaugeVec
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initTickMetrics()
	r.initResourceMetrics()
	return r
}

func (r *Registry) initTickMetrics() {
	r.TicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "idlecore_ticks_total",
			Help: "Total number of completed scheduler ticks",
		},
	)

	r.TickDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idlecore_tick_duration_seconds",
			Help:    "Wall-clock time spent executing one scheduler tick",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	r.TickConsumers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "idlecore_tick_consumers",
			Help: "Consumers visited during the most recent tick",
		},
	)

	r.InvocationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "idlecore_tick_invocations_total",
			Help: "Total number of consumer invocations",
		},
	)

	r.DroppedTicks = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "idlecore_telemetry_dropped",
			Help: "Telemetry records dropped by a full channel sink",
		},
	)
}

func (r *Registry) initResourceMetrics() {
	r.ResourceStock = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idlecore_resource_stock",
			Help: "Current stock of each resource node",
		},
		[]string{"node"},
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
