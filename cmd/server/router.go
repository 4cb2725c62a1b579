package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"citadel/internal/asset/handler"
	"citadel/internal/platform/metrics"
	"citadel/internal/platform/middleware"
	ratelimit "citadel/internal/ratelimit/middleware"
	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/httputil"
	"citadel/pkg/platform/middleware/request"
	"citadel/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

type routerDeps struct {
	service      handler.Service
	audit        handler.AuditReader
	validator    middleware.JWTValidator
	clock        middleware.HeightClock
	heightPolicy middleware.HeightPolicy
	limiter      *ratelimit.Middleware
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	health       func(ctx context.Context) error
	logger       *slog.Logger
}

// newRouter assembles the middleware chain. Health and metrics stay public; every
// asset route requires a bearer token, is charged to the caller's request budget
// and runs at a stamped height.
func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(deps.logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(deps.logger))
	r.Use(requesttime.Middleware)
	r.Use(request.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.health != nil {
			if err := deps.health(r.Context()); err != nil {
				deps.logger.WarnContext(r.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(deps.metrics))
		r.Use(middleware.RequireAuth(deps.validator, deps.metrics, deps.logger))
		if deps.limiter != nil {
			r.Use(deps.limiter.RateLimitPrincipal)
		}
		r.Use(middleware.StampHeight(deps.clock, deps.heightPolicy, deps.logger))
		handler.New(deps.service, deps.audit, deps.logger).Register(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}
