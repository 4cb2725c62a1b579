// Package domainerrors defines coded errors returned by services. The code is the
// stable, caller-visible signal; the message is human readable and may change.
package domainerrors

import (
	"errors"
)

// Code identifies a class of failure. Transports map codes to their own status space.
type Code string

// Generic codes shared by every module.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeRateLimited        Code = "rate_limit_exceeded"
	CodeInvariantViolation Code = "invariant_violation"
)

// Asset registry codes. Each one is a distinct outcome callers can branch on.
const (
	CodeAdministrativeAccessRequired Code = "administrative_access_required"
	CodeMissingAsset                 Code = "missing_asset"
	CodeDuplicateRegistration        Code = "duplicate_registration"
	CodeInvalidTitle                 Code = "invalid_title"
	CodeInvalidAbstract              Code = "invalid_abstract"
	CodeInvalidTagSet                Code = "invalid_tag_set"
	CodeFileSizeBoundaryViolation    Code = "file_size_boundary_violation"
	CodeAccessPermissionDenied       Code = "access_permission_denied"
	CodeOwnershipVerificationFailed  Code = "ownership_verification_failed"
	CodeViewAuthorizationRejected    Code = "view_authorization_rejected"
	CodeMetadataTagValidation        Code = "metadata_tag_validation_error"
)

// Error is a domain error carrying a Code and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal when
// err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
