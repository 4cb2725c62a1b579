package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/httputil"
	"citadel/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Asset, error)
	Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	RequireView(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	UpdateMetadata(ctx context.Context, assetID id.AssetID, req *models.UpdateMetadataRequest) (*models.Asset, error)
	AddTag(ctx context.Context, assetID id.AssetID, tag string) (*models.Asset, error)
	Archive(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	SetStatus(ctx context.Context, assetID id.AssetID, status string) (*models.Asset, error)
	TransferOwnership(ctx context.Context, assetID id.AssetID, newOwner id.Principal, reason string) (*models.Transition, error)
	History(ctx context.Context, assetID id.AssetID) ([]*models.Transition, error)
	Grant(ctx context.Context, assetID id.AssetID, viewer id.Principal, level string) (*models.Grant, error)
	Revoke(ctx context.Context, assetID id.AssetID, viewer id.Principal) (*models.Grant, error)
	IsAuthorized(ctx context.Context, assetID id.AssetID, viewer id.Principal) (bool, error)
	ListGrants(ctx context.Context, assetID id.AssetID) ([]*models.Grant, error)
	Analyze(ctx context.Context, assetID id.AssetID, caller id.Principal) (*models.Analytics, error)
	Counters(ctx context.Context) (*models.CounterSnapshot, error)
	Administrator() id.Principal
}

// AuditReader exposes the audit trail to the administrator.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Handler wires asset endpoints to the registry service.
type Handler struct {
	service Service
	audit   AuditReader
	logger  *slog.Logger
}

// New constructs an asset handler. audit may be nil, which disables /audit.
func New(service Service, audit AuditReader, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// Register mounts asset endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.HandleRegister)
	r.Route("/assets/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdateMetadata)
		r.Get("/view", h.HandleView)
		r.Post("/tags", h.HandleAddTag)
		r.Post("/archive", h.HandleArchive)
		r.Put("/status", h.HandleSetStatus)
		r.Post("/transfer", h.HandleTransfer)
		r.Get("/history", h.HandleHistory)
		r.Get("/analytics", h.HandleAnalyze)
		r.Get("/grants", h.HandleListGrants)
		r.Put("/grants/{viewer}", h.HandleGrant)
		r.Delete("/grants/{viewer}", h.HandleRevoke)
		r.Get("/grants/{viewer}", h.HandleIsAuthorized)
	})
	r.Get("/operational-metrics", h.HandleCounters)
	if h.audit != nil {
		r.Get("/audit", h.HandleRecentAudit)
	}
}

// HandleRegister handles POST /assets.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.Register(ctx, req.toModel())
	if err != nil {
		h.fail(ctx, w, "register", 0, err)
		return
	}
	h.logger.InfoContext(ctx, "asset registered",
		"request_id", requestID,
		"asset_id", a.ID,
		"owner", a.Owner,
	)
	httputil.WriteJSON(w, http.StatusCreated, a)
}

// HandleGet handles GET /assets/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(ctx, assetID)
	if err != nil {
		h.fail(ctx, w, "get", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleView handles GET /assets/{id}/view, the authorization-gated read.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	a, err := h.service.RequireView(ctx, assetID)
	if err != nil {
		h.fail(ctx, w, "view", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleUpdateMetadata handles PATCH /assets/{id}.
func (h *Handler) HandleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateMetadataRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.UpdateMetadata(ctx, assetID, &req.UpdateMetadataRequest)
	if err != nil {
		h.fail(ctx, w, "update_metadata", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleAddTag handles POST /assets/{id}/tags.
func (h *Handler) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddTagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.AddTag(ctx, assetID, req.Tag)
	if err != nil {
		h.fail(ctx, w, "add_tag", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleArchive handles POST /assets/{id}/archive.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Archive(ctx, assetID)
	if err != nil {
		h.fail(ctx, w, "archive", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleSetStatus handles PUT /assets/{id}/status.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.SetStatus(ctx, assetID, req.Status)
	if err != nil {
		h.fail(ctx, w, "set_status", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleTransfer handles POST /assets/{id}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entry, err := h.service.TransferOwnership(ctx, assetID, req.ParsedOwner(), req.Reason)
	if err != nil {
		h.fail(ctx, w, "transfer", assetID, err)
		return
	}
	h.logger.InfoContext(ctx, "ownership transferred",
		"request_id", requestID,
		"asset_id", assetID,
		"from", entry.From,
		"to", entry.To,
		"sequence", entry.Sequence,
	)
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// HandleHistory handles GET /assets/{id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(ctx, assetID)
	if err != nil {
		h.fail(ctx, w, "history", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistory(assetID, entries))
}

// HandleAnalyze handles GET /assets/{id}/analytics for the acting principal.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Analyze(ctx, assetID, requestcontext.Principal(ctx))
	if err != nil {
		h.fail(ctx, w, "analyze", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListGrants handles GET /assets/{id}/grants.
func (h *Handler) HandleListGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, ok := h.assetID(w, r)
	if !ok {
		return
	}
	grants, err := h.service.ListGrants(ctx, assetID)
	if err != nil {
		h.fail(ctx, w, "list_grants", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toGrants(assetID, grants))
}

// HandleGrant handles PUT /assets/{id}/grants/{viewer}. The body is optional; without
// one the grant gets the default level.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, viewer, ok := h.assetAndViewer(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeOptionalAndPrepare[GrantRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	g, err := h.service.Grant(ctx, assetID, viewer, req.Level)
	if err != nil {
		h.fail(ctx, w, "grant", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

// HandleRevoke handles DELETE /assets/{id}/grants/{viewer}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, viewer, ok := h.assetAndViewer(w, r)
	if !ok {
		return
	}
	g, err := h.service.Revoke(ctx, assetID, viewer)
	if err != nil {
		h.fail(ctx, w, "revoke", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

// HandleIsAuthorized handles GET /assets/{id}/grants/{viewer}.
func (h *Handler) HandleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, viewer, ok := h.assetAndViewer(w, r)
	if !ok {
		return
	}
	authorized, err := h.service.IsAuthorized(ctx, assetID, viewer)
	if err != nil {
		h.fail(ctx, w, "is_authorized", assetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuthorizationResponse{
		AssetID:    assetID,
		Viewer:     viewer,
		Authorized: authorized,
	})
}

// HandleCounters handles GET /operational-metrics.
func (h *Handler) HandleCounters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snapshot, err := h.service.Counters(ctx)
	if err != nil {
		h.fail(ctx, w, "counters", 0, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// HandleRecentAudit handles GET /audit?limit=N. Administrator only.
func (h *Handler) HandleRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.Principal(ctx) != h.service.Administrator() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeAdministrativeAccessRequired, "audit trail is restricted to the administrator"))
		return
	}
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	events, err := h.audit.Recent(ctx, limit)
	if err != nil {
		h.fail(ctx, w, "audit", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Events: events})
}

func (h *Handler) assetID(w http.ResponseWriter, r *http.Request) (id.AssetID, bool) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return assetID, true
}

func (h *Handler) assetAndViewer(w http.ResponseWriter, r *http.Request) (id.AssetID, id.Principal, bool) {
	assetID, ok := h.assetID(w, r)
	if !ok {
		return 0, "", false
	}
	viewer, err := id.ParsePrincipal(chi.URLParam(r, "viewer"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, "", false
	}
	return assetID, viewer, true
}

// fail logs at a level matching the outcome and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, assetID id.AssetID, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	if !assetID.IsNil() {
		attrs = append(attrs, "asset_id", assetID)
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "asset operation failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "asset operation rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
