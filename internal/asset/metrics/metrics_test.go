package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("register", "ok", time.Now())
	m.ObserveOperation("register", "duplicate_registration", time.Now())
	m.ObserveOperation("register", "ok", time.Now())
	m.IncrementAuthorizationDenied("analyze")
	m.IncrementAssetsRegistered()
	m.IncrementOwnershipTransfers()
	m.IncrementOwnershipTransfers()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Operations.WithLabelValues("register", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Operations.WithLabelValues("register", "duplicate_registration")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthorizationDenied.WithLabelValues("analyze")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AssetsRegistered), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.OwnershipTransfers), 0)
}
