package models

import (
	id "citadel/pkg/domain"
)

// RegisterRequest describes a new asset. A zero ID asks the registry to allocate one.
type RegisterRequest struct {
	ID          id.AssetID `json:"id,omitempty"`
	Designation string     `json:"designation"`
	SizeBytes   uint64     `json:"size_bytes"`
	Summary     string     `json:"summary"`
	Tags        []string   `json:"tags"`
	Status      string     `json:"status,omitempty"`
}

// UpdateMetadataRequest is a partial update; nil fields are left untouched.
type UpdateMetadataRequest struct {
	Designation *string   `json:"designation,omitempty"`
	Summary     *string   `json:"summary,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	SizeBytes   *uint64   `json:"size_bytes,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (r *UpdateMetadataRequest) IsEmpty() bool {
	return r.Designation == nil && r.Summary == nil && r.Tags == nil && r.SizeBytes == nil
}
