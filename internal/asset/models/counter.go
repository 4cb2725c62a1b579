package models

import (
	id "citadel/pkg/domain"
)

// Metric categories maintained as side effects of registry writes.
const (
	MetricTotalRegisteredAssets    = "total-registered-assets"
	MetricOwnershipTransferCounter = "ownership-transfer-counter"
	MetricRegistryOperations       = "registry-operations"
	MetricMetadataUpdates          = "metadata-updates"
	MetricAccessGrants             = "access-grants"
	MetricAccessRevocations        = "access-revocations"
)

// Counter is a monotonically non-decreasing operational metric.
type Counter struct {
	Category  string    `json:"category"`
	Value     uint64    `json:"value"`
	UpdatedAt id.Height `json:"updated_at"`
}

// PerformanceScore is a coarse activity indicator: 5 per registered asset plus 2 per
// ownership transfer.
func PerformanceScore(totalRegistered, transfers uint64) uint64 {
	return 5*totalRegistered + 2*transfers
}

// CounterSnapshot is every counter at one consistent point plus the derived score.
type CounterSnapshot struct {
	Counters         []*Counter `json:"counters"`
	PerformanceScore uint64     `json:"performance_score"`
}
