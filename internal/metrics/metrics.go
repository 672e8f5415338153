// Package metrics exposes Prometheus counters for bill operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billtrack"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	parses     *prometheus.CounterVec
	connects   *prometheus.CounterVec
	reminders  *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_operations_total",
			Help:      "Bill operations by operation, target store and outcome.",
		}, []string{"operation", "target", "outcome"}),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_requests_total",
			Help:      "Free-text parse requests by whether any field was extracted.",
		}, []string{"extracted"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_connects_total",
			Help:      "Backend connection attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminders produced by kind.",
		}, []string{"kind"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.operations, m.parses, m.connects, m.reminders, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Operation counts one bill operation against target ("local" or a backend key).
func (m *Metrics) Operation(op, target string, ok bool) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, target, outcome(ok)).Inc()
}

func (m *Metrics) Parse(extracted bool) {
	if m == nil {
		return
	}
	m.parses.WithLabelValues(outcome(extracted)).Inc()
}

func (m *Metrics) Connect(backend string, ok bool) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(backend, outcome(ok)).Inc()
}

func (m *Metrics) Reminder(kind string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(kind).Inc()
}

func (m *Metrics) Request(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, http.StatusText(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
