package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/httputil"
	"citadel/pkg/platform/middleware/request"
	"citadel/pkg/requestcontext"
)

// HeaderHeight lets an upstream that owns the logical clock pin the height of a call.
const HeaderHeight = "X-Citadel-Height"

// HeightClock is the local height source. Observe keeps it monotonic with heights
// supplied by callers.
type HeightClock interface {
	Current() id.Height
	Observe(h id.Height)
}

// HeightPolicy decides who may supply a height and how far ahead of the local clock
// it may be. The clock is shared by every caller and never moves backwards.
type HeightPolicy struct {
	Trusted  []id.Principal
	MaxAhead id.Height
}

func (p HeightPolicy) trusts(principal id.Principal) bool {
	if principal.IsNil() {
		return false
	}
	for _, t := range p.Trusted {
		if t == principal {
			return true
		}
	}
	return false
}

// StampHeight puts the current height into the request context. Must run after
// RequireAuth. A height header is accepted only from a trusted principal and only
// up to MaxAhead past the local clock; a stale value is ignored.
func StampHeight(clock HeightClock, policy HeightPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			h := clock.Current()
			if raw := r.Header.Get(HeaderHeight); raw != "" {
				principal := requestcontext.Principal(ctx)
				if !policy.trusts(principal) {
					logger.WarnContext(ctx, "height header from untrusted principal",
						"principal", principal,
						"request_id", request.GetRequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "height header is reserved for trusted callers"))
					return
				}
				n, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					logger.WarnContext(ctx, "invalid height header",
						"value", raw,
						"request_id", request.GetRequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "height header must be an unsigned integer"))
					return
				}
				supplied := id.Height(n)
				if supplied > h && supplied-h > policy.MaxAhead {
					logger.WarnContext(ctx, "height header too far ahead",
						"value", raw,
						"current", h,
						"principal", principal,
						"request_id", request.GetRequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput,
						fmt.Sprintf("height header may be at most %d ahead of %d", policy.MaxAhead, h)))
					return
				}
				if supplied > h {
					clock.Observe(supplied)
					h = supplied
				}
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithHeight(ctx, h)))
		})
	}
}
