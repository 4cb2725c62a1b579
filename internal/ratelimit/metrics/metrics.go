package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections  *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "citadel_ratelimit_rejections_total",
			Help: "Requests rejected because the principal exhausted its budget",
		}, []string{"class"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "citadel_ratelimit_store_errors_total",
			Help: "Budget checks that failed open because the bucket store errored",
		}),
	}
}

func (m *Metrics) IncrementRejections(class string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
