package models

import (
	id "citadel/pkg/domain"
)

// AccessLevel names the tier a grant confers. Only viewing is enforced today; the
// level is recorded for callers that tier their own presentation.
type AccessLevel string

const AccessLevelView AccessLevel = "view"

// Grant is one cell of the access control matrix, keyed by (AssetID, Viewer).
// Revocation flips Granted and keeps the slot so the matrix never loses history.
type Grant struct {
	AssetID   id.AssetID   `json:"asset_id"`
	Viewer    id.Principal `json:"viewer"`
	Granted   bool         `json:"granted"`
	GrantedAt id.Height    `json:"granted_at"`
	Level     AccessLevel  `json:"level"`
	RevokedAt id.Height    `json:"revoked_at,omitempty"`
}

// NewGrant builds an active grant issued at height.
func NewGrant(assetID id.AssetID, viewer id.Principal, level AccessLevel, height id.Height) *Grant {
	if level == "" {
		level = AccessLevelView
	}
	return &Grant{
		AssetID:   assetID,
		Viewer:    viewer,
		Granted:   true,
		GrantedAt: height,
		Level:     level,
	}
}

// Clone returns a copy safe to hand across store boundaries.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Revoke clears the authorization but retains the slot and its grant height.
func (g *Grant) Revoke(height id.Height) {
	g.Granted = false
	g.RevokedAt = height
}

// Authorizes applies the default-deny rule: a missing grant authorizes nothing.
func Authorizes(g *Grant) bool {
	return g != nil && g.Granted
}
