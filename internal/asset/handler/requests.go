package handler

import (
	"strings"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
)

// maxTagsInBody rejects absurd tag arrays before the registry's own tag rules run.
const maxTagsInBody = 64

// RegisterRequest is the HTTP request body for POST /assets.
type RegisterRequest struct {
	ID          uint64   `json:"id,omitempty"`
	Designation string   `json:"designation"`
	SizeBytes   uint64   `json:"size_bytes"`
	Summary     string   `json:"summary"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
// Content rules belong to the registry; this only guards the transport.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Tags) > maxTagsInBody {
		return dErrors.New(dErrors.CodeInvalidTagSet, "too many tags")
	}
	return nil
}

func (r *RegisterRequest) toModel() *models.RegisterRequest {
	return &models.RegisterRequest{
		ID:          id.AssetID(r.ID),
		Designation: r.Designation,
		SizeBytes:   r.SizeBytes,
		Summary:     r.Summary,
		Tags:        r.Tags,
		Status:      r.Status,
	}
}

// UpdateMetadataRequest is the HTTP request body for PATCH /assets/{id}.
type UpdateMetadataRequest struct {
	models.UpdateMetadataRequest
}

func (r *UpdateMetadataRequest) Validate() error {
	if r == nil || r.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be updated")
	}
	if r.Tags != nil && len(*r.Tags) > maxTagsInBody {
		return dErrors.New(dErrors.CodeInvalidTagSet, "too many tags")
	}
	return nil
}

// AddTagRequest is the HTTP request body for POST /assets/{id}/tags.
type AddTagRequest struct {
	Tag string `json:"tag"`
}

func (r *AddTagRequest) Validate() error {
	if r == nil || r.Tag == "" {
		return dErrors.New(dErrors.CodeMetadataTagValidation, "tag is required")
	}
	return nil
}

// SetStatusRequest is the HTTP request body for PUT /assets/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

func (r *SetStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

// TransferRequest is the HTTP request body for POST /assets/{id}/transfer.
type TransferRequest struct {
	NewOwner string `json:"new_owner"`
	Reason   string `json:"reason"`

	parsedOwner id.Principal
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	owner, err := id.ParsePrincipal(r.NewOwner)
	if err != nil {
		return err
	}
	r.parsedOwner = owner
	return nil
}

// ParsedOwner returns the validated new owner.
func (r *TransferRequest) ParsedOwner() id.Principal {
	return r.parsedOwner
}

// GrantRequest is the HTTP request body for PUT /assets/{id}/grants/{viewer}.
type GrantRequest struct {
	Level string `json:"level,omitempty"`
}

func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Level = strings.TrimSpace(r.Level)
	return nil
}
