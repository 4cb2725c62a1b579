package models

import (
	"slices"
	"time"

	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
)

// Status is a short code describing an asset's lifecycle state. Records are never
// deleted; StatusArchived is the logical delete.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Asset is the registry's aggregate root: metadata for an off-store binary object.
//
// Invariants:
//   - ID is unique and never reused
//   - RegisteredAt and CreatedAt never change after construction
//   - Owner only changes through TransferTo, which the service pairs with a
//     transition log entry
//   - LastModifiedAt is bumped by every mutation
type Asset struct {
	ID             id.AssetID   `json:"id"`
	Designation    string       `json:"designation"`
	Owner          id.Principal `json:"owner"`
	SizeBytes      uint64       `json:"size_bytes"`
	RegisteredAt   id.Height    `json:"registered_at"`
	Summary        string       `json:"summary"`
	Tags           []string     `json:"tags"`
	CreatedAt      time.Time    `json:"created_at"`
	LastModifiedAt id.Height    `json:"last_modified_at"`
	Status         Status       `json:"status"`
}

// NewAsset validates req against limits and builds a record owned by owner.
// Validation failures carry the specific code for the rule that failed.
func NewAsset(req *RegisterRequest, owner id.Principal, height id.Height, now time.Time, limits Limits) (*Asset, error) {
	if req.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset id must be assigned before construction")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset owner cannot be empty")
	}
	if err := limits.CheckRegistration(req); err != nil {
		return nil, err
	}
	status := Status(req.Status)
	if status == "" {
		status = StatusActive
	}
	return &Asset{
		ID:             req.ID,
		Designation:    req.Designation,
		Owner:          owner,
		SizeBytes:      req.SizeBytes,
		RegisteredAt:   height,
		Summary:        req.Summary,
		Tags:           slices.Clone(req.Tags),
		CreatedAt:      now,
		LastModifiedAt: height,
		Status:         status,
	}, nil
}

// Clone returns a deep copy so stores never hand out aliases of their state.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Tags = slices.Clone(a.Tags)
	return &c
}

// IsOwnedBy reports whether p currently controls the asset.
func (a *Asset) IsOwnedBy(p id.Principal) bool {
	return !p.IsNil() && a.Owner == p
}

// IsArchived reports whether the asset was logically deleted.
func (a *Asset) IsArchived() bool {
	return a.Status == StatusArchived
}

// ApplyMetadata writes every field present in req. Call Limits.CheckMetadataUpdate first.
func (a *Asset) ApplyMetadata(req *UpdateMetadataRequest, height id.Height) {
	if req.Designation != nil {
		a.Designation = *req.Designation
	}
	if req.Summary != nil {
		a.Summary = *req.Summary
	}
	if req.Tags != nil {
		a.Tags = slices.Clone(*req.Tags)
	}
	if req.SizeBytes != nil {
		a.SizeBytes = *req.SizeBytes
	}
	a.LastModifiedAt = height
}

// AddTag appends a single tag. A malformed or repeated tag is a tag validation error;
// running out of room is a tag-set error.
func (a *Asset) AddTag(tag string, height id.Height, limits Limits) error {
	if err := limits.CheckTag(tag); err != nil {
		return err
	}
	if slices.Contains(a.Tags, tag) {
		return dErrors.New(dErrors.CodeMetadataTagValidation, "tag already present")
	}
	if len(a.Tags) >= limits.MaxTags {
		return dErrors.New(dErrors.CodeInvalidTagSet, "tag set is full")
	}
	a.Tags = append(a.Tags, tag)
	a.LastModifiedAt = height
	return nil
}

// TransferTo hands control to newOwner and returns the previous owner.
func (a *Asset) TransferTo(newOwner id.Principal, height id.Height) id.Principal {
	from := a.Owner
	a.Owner = newOwner
	a.LastModifiedAt = height
	return from
}

// ApplyStatus sets the status code. Call Limits.CheckStatus first.
func (a *Asset) ApplyStatus(status Status, height id.Height) {
	a.Status = status
	a.LastModifiedAt = height
}
