package audit

import (
	"context"
	"time"

	id "citadel/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that change who controls or may see an asset.
	// Examples: ownership transfers, access grants and revocations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: rejected authorization attempts, administrative overrides.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine registry activity.
	// Examples: registrations, metadata edits, tag additions.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted after a registry write commits. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	AssetID   id.AssetID    `json:"asset_id"`
	// Actor is the principal who performed the action.
	Actor id.Principal `json:"actor"`
	// Subject is the other principal involved, if any: the new owner of a transfer
	// or the viewer of a grant.
	Subject   id.Principal `json:"subject,omitempty"`
	Height    id.Height    `json:"height"`
	Reason    string       `json:"reason,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Registry events
	EventAssetRegistered  AuditEvent = "asset_registered"
	EventMetadataUpdated  AuditEvent = "asset_metadata_updated"
	EventTagAdded         AuditEvent = "asset_tag_added"
	EventAssetArchived    AuditEvent = "asset_archived"
	EventStatusOverridden AuditEvent = "asset_status_overridden"

	// Ownership events
	EventOwnershipTransferred AuditEvent = "ownership_transferred"

	// Access events
	EventAccessGranted AuditEvent = "access_granted"
	EventAccessRevoked AuditEvent = "access_revoked"
	EventAccessDenied  AuditEvent = "access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventOwnershipTransferred: CategoryCompliance,
	EventAccessGranted:        CategoryCompliance,
	EventAccessRevoked:        CategoryCompliance,

	EventAccessDenied:     CategorySecurity,
	EventStatusOverridden: CategorySecurity,

	EventAssetRegistered: CategoryOperations,
	EventMetadataUpdated: CategoryOperations,
	EventTagAdded:        CategoryOperations,
	EventAssetArchived:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events and reads them back per asset.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAsset(ctx context.Context, assetID id.AssetID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink forwards events to an external system. Sinks are best-effort: a failing
// sink never fails the write that produced the event.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
