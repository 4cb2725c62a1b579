// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "citadel/pkg/domain-errors"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

// Validatable is implemented by request bodies that normalize and check themselves.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the wire shape of every error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and writes the error body.
// Internal failures never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if errors.Is(err, context.DeadlineExceeded) {
		code = dErrors.CodeTimeout
	}
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor returns the HTTP status used for a domain code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest,
		dErrors.CodeValidation,
		dErrors.CodeInvalidInput,
		dErrors.CodeInvalidTitle,
		dErrors.CodeInvalidAbstract,
		dErrors.CodeInvalidTagSet,
		dErrors.CodeFileSizeBoundaryViolation,
		dErrors.CodeMetadataTagValidation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound, dErrors.CodeMissingAsset:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateRegistration:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden,
		dErrors.CodeAdministrativeAccessRequired,
		dErrors.CodeAccessPermissionDenied,
		dErrors.CodeOwnershipVerificationFailed,
		dErrors.CodeViewAuthorizationRejected:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields. It
// returns io.EOF unwrapped when the body is empty, whatever the request's
// ContentLength says.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// DecodeAndPrepare decodes a request body of type T and runs its Validate method.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	return prepare[T, PT](w, r, logger, ctx, requestID, false)
}

// DecodeOptionalAndPrepare is DecodeAndPrepare for routes whose body may be
// omitted. An empty body validates and returns the zero T.
func DecodeOptionalAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	return prepare[T, PT](w, r, logger, ctx, requestID, true)
}

func prepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string, optional bool) (*T, bool) {
	req := PT(new(T))
	err := decodeJSON(r, req)
	if errors.Is(err, io.EOF) {
		if optional {
			err = nil
		} else {
			err = dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
	}
	if err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
