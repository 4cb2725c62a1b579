package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport-level Prometheus metrics shared by every router.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	AuthFailures    *prometheus.CounterVec
}

// New creates and registers the HTTP metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citadel_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citadel_http_auth_failures_total",
			Help: "Requests rejected before reaching a handler, by reason",
		}, []string{"reason"}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// IncrementAuthFailure counts a rejected request.
func (m *Metrics) IncrementAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}
