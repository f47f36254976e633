// Package metrics exposes Prometheus instrumentation for the word loop and
// its real-time connections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wordloop"

// Metrics holds every collector the server updates.
type Metrics struct {
	ConnectedClients  prometheus.Gauge
	BroadcastsTotal   *prometheus.CounterVec
	DeliveryFailures  prometheus.Counter
	BroadcastDuration prometheus.Histogram
	LoopRunning       prometheus.Gauge
	TicksTotal        prometheus.Counter
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connected_clients",
			Help:      "Number of registered real-time connections.",
		}),
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts, by message type.",
		}, []string{"type"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "delivery_failures_total",
			Help:      "Total number of failed per-connection deliveries.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time until every delivery of a broadcast has settled.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		LoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "running",
			Help:      "1 while the word loop is running.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total number of words produced by the loop.",
		}),
	}

	reg.MustRegister(
		m.ConnectedClients,
		m.BroadcastsTotal,
		m.DeliveryFailures,
		m.BroadcastDuration,
		m.LoopRunning,
		m.TicksTotal,
	)
	return m
}
