// Package metrics collects bot counters in a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the bot exports.
type Metrics struct {
	registry    *prometheus.Registry
	updates     *prometheus.CounterVec
	mutations   *prometheus.CounterVec
	syncs       *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	syncPending prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
}

// New creates a Metrics instance with a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolstock_updates_total",
			Help: "Inbound chat updates by kind",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolstock_mutations_total",
			Help: "Inventory mutations by kind and result",
		}, []string{"kind", "result"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolstock_remote_sync_total",
			Help: "Remote sync attempts by result",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolstock_wizard_outcomes_total",
			Help: "Wizard step outcomes",
		}, []string{"outcome"}),
		syncPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toolstock_sync_pending",
			Help: "1 while local changes wait for a remote sync",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		reqLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(m.updates, m.mutations, m.syncs, m.outcomes, m.syncPending, m.reqTotal, m.reqLatency)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Update counts one inbound update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// Mutation counts one inventory mutation.
func (m *Metrics) Mutation(kind string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, result(err == nil)).Inc()
}

// Sync counts one remote sync attempt and tracks the pending flag.
func (m *Metrics) Sync(ok bool) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result(ok)).Inc()
	if ok {
		m.syncPending.Set(0)
	} else {
		m.syncPending.Set(1)
	}
}

// Outcome counts one wizard outcome.
func (m *Metrics) Outcome(name string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(name).Inc()
}

// Middleware returns a gin middleware that records request counts and latency.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := http.StatusText(c.Writer.Status())
		m.reqTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.reqLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
