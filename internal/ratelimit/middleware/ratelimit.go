package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"citadel/internal/ratelimit/metrics"
	"citadel/internal/ratelimit/models"
	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/httputil"
	"citadel/pkg/requestcontext"
)

// BucketStore admits or rejects one request against a keyed sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	store    BucketStore
	policies map[models.Class]models.Policy
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New builds the limiter. A class without an enabled policy is never limited.
func New(store BucketStore, policies map[models.Class]models.Policy, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		policies: policies,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitPrincipal charges each request to the authenticated principal's budget
// for the class implied by the method. It must run after authentication.
// Store failures fail open.
func (m *Middleware) RateLimitPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		class := models.ClassForMethod(r.Method)
		policy, ok := m.policies[class]
		principal := requestcontext.Principal(ctx)
		if !ok || !policy.Enabled() || principal.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.store.Allow(ctx, models.Key(class, principal), policy.Limit, policy.Window)
		if err != nil {
			m.metrics.IncrementStoreErrors()
			m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err, "principal", principal, "class", class)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.metrics.IncrementRejections(string(class))
			m.logger.WarnContext(ctx, "rate limit exceeded", "principal", principal, "class", class)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "request budget exhausted, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
