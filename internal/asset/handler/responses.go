package handler

import (
	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	audit "citadel/pkg/platform/audit"
)

// HistoryResponse lists an asset's ownership transitions, oldest first.
type HistoryResponse struct {
	AssetID     id.AssetID           `json:"asset_id"`
	Transitions []*models.Transition `json:"transitions"`
}

// GrantsResponse lists every grant slot of an asset, revoked ones included.
type GrantsResponse struct {
	AssetID id.AssetID      `json:"asset_id"`
	Grants  []*models.Grant `json:"grants"`
}

// AuthorizationResponse answers GET /assets/{id}/grants/{viewer}.
type AuthorizationResponse struct {
	AssetID    id.AssetID   `json:"asset_id"`
	Viewer     id.Principal `json:"viewer"`
	Authorized bool         `json:"authorized"`
}

// AuditResponse lists recent audit events.
type AuditResponse struct {
	Events []audit.Event `json:"events"`
}

func toHistory(assetID id.AssetID, entries []*models.Transition) HistoryResponse {
	if entries == nil {
		entries = []*models.Transition{}
	}
	return HistoryResponse{AssetID: assetID, Transitions: entries}
}

func toGrants(assetID id.AssetID, grants []*models.Grant) GrantsResponse {
	if grants == nil {
		grants = []*models.Grant{}
	}
	return GrantsResponse{AssetID: assetID, Grants: grants}
}
