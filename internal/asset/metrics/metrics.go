package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus observability for the asset module.
// These mirror, but are independent of, the operational counters kept in the ledger:
// ledger counters are durable domain state, these are per-process telemetry.
type Metrics struct {
	Operations          *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	AuthorizationDenied *prometheus.CounterVec
	AssetsRegistered    prometheus.Counter
	OwnershipTransfers  prometheus.Counter
	AuditEmitFailures   prometheus.Counter
}

// New registers all asset metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citadel_asset_operations_total",
			Help: "Asset operations by name and outcome (ok or error code)",
		}, []string{"operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citadel_asset_operation_duration_seconds",
			Help:    "Duration of asset operations including the transaction scope",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		AuthorizationDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citadel_asset_authorization_denied_total",
			Help: "Operations rejected by an ownership, grant or administrator check",
		}, []string{"operation"}),
		AssetsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "citadel_assets_registered_total",
			Help: "Assets registered by this process",
		}),
		OwnershipTransfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "citadel_ownership_transfers_total",
			Help: "Ownership transfers committed by this process",
		}),
		AuditEmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "citadel_audit_emit_failures_total",
			Help: "Audit events that could not be handed to the publisher",
		}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAuthorizationDenied(operation string) {
	m.AuthorizationDenied.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementAssetsRegistered() {
	m.AssetsRegistered.Inc()
}

func (m *Metrics) IncrementOwnershipTransfers() {
	m.OwnershipTransfers.Inc()
}

func (m *Metrics) IncrementAuditEmitFailures() {
	m.AuditEmitFailures.Inc()
}
