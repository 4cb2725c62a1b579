// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// The asset core consumes two ambient facts from its host: the acting principal and
// the current height. Middleware (or a test) puts them in the context; services read
// them back. Nothing here is global state, so services stay deterministic under test.
//
// Usage in services (read values):
//
//	caller := requestcontext.Principal(ctx)
//	height, ok := requestcontext.Height(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithPrincipal(ctx, "alice")
//	ctx = requestcontext.WithHeight(ctx, 1200)
package requestcontext

import (
	"context"
	"time"

	id "citadel/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	principalKey   struct{}
	heightKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyHeight      = heightKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Acting principal
// -----------------------------------------------------------------------------

// Principal retrieves the acting principal from the context.
// Returns the zero value if not set.
func Principal(ctx context.Context) id.Principal {
	if p, ok := ctx.Value(ContextKeyPrincipal).(id.Principal); ok {
		return p
	}
	return ""
}

// WithPrincipal injects the acting principal into the context.
func WithPrincipal(ctx context.Context, p id.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// -----------------------------------------------------------------------------
// Current height
// -----------------------------------------------------------------------------

// Height retrieves the current height from the context. The boolean is false when
// no height was stamped, letting callers apply their own fallback.
func Height(ctx context.Context) (id.Height, bool) {
	h, ok := ctx.Value(ContextKeyHeight).(id.Height)
	return h, ok
}

// WithHeight injects the current height into the context.
func WithHeight(ctx context.Context, h id.Height) context.Context {
	return context.WithValue(ctx, ContextKeyHeight, h)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped wall-clock time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific wall-clock time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
