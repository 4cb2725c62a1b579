package models

import (
	"net/http"
	"time"

	id "citadel/pkg/domain"
)

// Class groups routes that share a request budget.
type Class string

const (
	// ClassRead covers lookups, analytics and listings.
	ClassRead Class = "read"
	// ClassWrite covers registrations, mutations, grants and transfers.
	ClassWrite Class = "write"
)

// ClassForMethod maps an HTTP method onto its budget class.
func ClassForMethod(method string) Class {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}

// Policy is the request budget for one class: Limit requests per sliding Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the policy restricts anything.
func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// Result is the outcome of one budget check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Key builds the bucket key for a principal within a class.
func Key(class Class, principal id.Principal) string {
	return "ratelimit:" + string(class) + ":" + principal.String()
}
