// Package requesttime pins one wall-clock "now" per request so audit timestamps
// written during a single call agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"citadel/pkg/requestcontext"
)

// Middleware stamps the request context with the time the request arrived.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
