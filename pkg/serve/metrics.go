package serve

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts server activity. Each Metrics owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	hits      prometheus.Counter
	scanned   prometheus.Counter
	keywords  prometheus.Gauge
	sessions  prometheus.Gauge
	durations *prometheus.HistogramVec
}

// NewMetrics creates server metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kwmatch",
			Name:      "requests_total",
			Help:      "Requests handled, by type and outcome.",
		}, []string{"type", "status"}),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwmatch",
			Name:      "hits_total",
			Help:      "Keyword occurrences reported.",
		}),
		scanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwmatch",
			Name:      "scanned_bytes_total",
			Help:      "Bytes of content matched.",
		}),
		keywords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kwmatch",
			Name:      "keywords",
			Help:      "Keywords currently loaded.",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kwmatch",
			Name:      "stream_sessions",
			Help:      "Open stream sessions.",
		}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kwmatch",
			Name:      "request_duration_seconds",
			Help:      "Request handling time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsHandler serves m in the Prometheus exposition format.
func MetricsHandler(m *Metrics) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observe(reqType string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.requests.WithLabelValues(reqType, status).Inc()
	m.durations.WithLabelValues(reqType).Observe(seconds)
}

func (m *Metrics) addHits(n int) {
	if m != nil {
		m.hits.Add(float64(n))
	}
}

func (m *Metrics) addScanned(n int) {
	if m != nil {
		m.scanned.Add(float64(n))
	}
}

func (m *Metrics) setState(keywords, sessions int) {
	if m != nil {
		m.keywords.Set(float64(keywords))
		m.sessions.Set(float64(sessions))
	}
}
