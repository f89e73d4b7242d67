package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/inspection-audit/internal/audit"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	subscriptions prometheus.Gauge
	dropped       prometheus.Counter
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_change_submissions_total",
			Help: "Change submissions by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_history_fetches_total",
			Help: "Change history fetches by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_refreshes_total",
			Help: "Feed refreshes by trigger path.",
		}, []string{"mode"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audit_subscriptions_active",
			Help: "Live change feed subscriptions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Realtime events dropped on full subscriber queues.",
		}),
	}
	reg.MustRegister(m.requests, m.requestTime, m.errors, m.outcomes, m.fetches,
		m.refreshes, m.subscriptions, m.dropped)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

func (m *Metrics) RecordOutcome(outcome audit.Outcome) {
	m.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) RecordFetch(result audit.FetchResult) {
	m.fetches.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) RecordRefresh(mode audit.RefreshMode) {
	m.refreshes.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) SubscriptionOpened() { m.subscriptions.Inc() }

func (m *Metrics) SubscriptionClosed() { m.subscriptions.Dec() }

// RecordDropped counts an event dropped by the realtime dispatcher.
func (m *Metrics) RecordDropped() { m.dropped.Inc() }

var _ audit.Metrics = (*Metrics)(nil)
