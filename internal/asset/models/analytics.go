package models

import (
	id "citadel/pkg/domain"
)

// Analytics is a point-in-time view derived from one consistent read of the registry
// and access matrix.
type Analytics struct {
	AssetID          id.AssetID `json:"asset_id"`
	Tenure           uint64     `json:"tenure"`
	SizeBytes        uint64     `json:"size_bytes"`
	TagCount         int        `json:"tag_count"`
	ModificationAge  uint64     `json:"modification_age"`
	MaturityScore    uint8      `json:"maturity_score"`
	AccessComplexity int        `json:"access_complexity"`
	ComputedAt       id.Height  `json:"computed_at"`
}

// MaturityScore brackets tenure: >1000 → 100, >500 → 75, >100 → 50, otherwise 25.
func MaturityScore(tenure uint64) uint8 {
	switch {
	case tenure > 1000:
		return 100
	case tenure > 500:
		return 75
	case tenure > 100:
		return 50
	default:
		return 25
	}
}

// NewAnalytics derives analytics for a at height, given the number of viewers
// currently holding an active grant.
func NewAnalytics(a *Asset, activeViewers int, height id.Height) *Analytics {
	tenure := height.Since(a.RegisteredAt)
	return &Analytics{
		AssetID:          a.ID,
		Tenure:           tenure,
		SizeBytes:        a.SizeBytes,
		TagCount:         len(a.Tags),
		ModificationAge:  height.Since(a.LastModifiedAt),
		MaturityScore:    MaturityScore(tenure),
		AccessComplexity: activeViewers,
		ComputedAt:       height,
	}
}
