package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"citadel/internal/platform/metrics"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/httputil"
	"citadel/pkg/platform/middleware/request"
	"citadel/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Principal string
	JTI       string
}

// RequireAuth resolves the bearer token into the acting principal. Requests without
// a valid token never reach the handler.
func RequireAuth(validator JWTValidator, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				m.IncrementAuthFailure("missing_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				m.IncrementAuthFailure("invalid_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			principal, err := id.ParsePrincipal(claims.Principal)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - bad subject",
					"error", err,
					"request_id", requestID,
				)
				m.IncrementAuthFailure("invalid_subject")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid token subject"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
