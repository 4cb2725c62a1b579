package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"citadel/internal/asset/metrics"
	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/sentinel"
	"citadel/pkg/requestcontext"
)

type AssetStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	FindByID(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	Update(ctx context.Context, asset *models.Asset) error
	NextID(ctx context.Context) (id.AssetID, error)
}

type GrantStore interface {
	Upsert(ctx context.Context, grant *models.Grant) error
	Find(ctx context.Context, assetID id.AssetID, viewer id.Principal) (*models.Grant, error)
	ListByAsset(ctx context.Context, assetID id.AssetID) ([]*models.Grant, error)
	CountActive(ctx context.Context, assetID id.AssetID) (int, error)
}

// TransitionLog is append-only: there is no way to edit or remove an entry.
type TransitionLog interface {
	Append(ctx context.Context, in models.TransitionInput) (*models.Transition, error)
	ReadAll(ctx context.Context, assetID id.AssetID) ([]*models.Transition, error)
}

type CounterStore interface {
	Increment(ctx context.Context, category string, height id.Height) (*models.Counter, error)
	Get(ctx context.Context, category string) (*models.Counter, error)
	List(ctx context.Context) ([]*models.Counter, error)
}

// StoreTx provides the transaction scope covering all four stores. Every store call
// made with the ctx passed to fn joins the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// HeightSource supplies the current height when the request context carries none.
type HeightSource interface {
	Current() id.Height
}

// Stores groups the persistence ports.
type Stores struct {
	Assets      AssetStore
	Grants      GrantStore
	Transitions TransitionLog
	Counters    CounterStore
	Tx          StoreTx
}

// Config is fixed at construction and never changes for the life of the service.
type Config struct {
	Administrator id.Principal
	Limits        models.Limits
}

// Service implements the asset registry, access matrix, ownership log, metrics and
// analytics operations over one transactional ledger.
type Service struct {
	assets      AssetStore
	grants      GrantStore
	transitions TransitionLog
	counters    CounterStore
	tx          StoreTx

	admin  id.Principal
	limits models.Limits

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	heights        HeightSource
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithHeightSource(h HeightSource) Option {
	return func(s *Service) {
		s.heights = h
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(stores Stores, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case stores.Assets == nil:
		return nil, errors.New("asset store is required")
	case stores.Grants == nil:
		return nil, errors.New("grant store is required")
	case stores.Transitions == nil:
		return nil, errors.New("transition log is required")
	case stores.Counters == nil:
		return nil, errors.New("counter store is required")
	case stores.Tx == nil:
		return nil, errors.New("store transaction is required")
	case cfg.Administrator.IsNil():
		return nil, errors.New("administrator principal is required")
	}
	if cfg.Limits == (models.Limits{}) {
		cfg.Limits = models.DefaultLimits()
	}

	s := &Service{
		assets:      stores.Assets,
		grants:      stores.Grants,
		transitions: stores.Transitions,
		counters:    stores.Counters,
		tx:          stores.Tx,
		admin:       cfg.Administrator,
		limits:      cfg.Limits,
		logger:      slog.Default(),
		tracer:      otel.Tracer("citadel/internal/asset/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Administrator returns the configured administrator principal.
func (s *Service) Administrator() id.Principal {
	return s.admin
}

// -----------------------------------------------------------------------------
// Ambient inputs
// -----------------------------------------------------------------------------

func (s *Service) actingPrincipal(ctx context.Context) (id.Principal, error) {
	p := requestcontext.Principal(ctx)
	if p.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "acting principal is required")
	}
	return p, nil
}

func (s *Service) currentHeight(ctx context.Context) (id.Height, error) {
	if h, ok := requestcontext.Height(ctx); ok {
		return h, nil
	}
	if s.heights != nil {
		return s.heights.Current(), nil
	}
	return 0, dErrors.New(dErrors.CodeInternal, "current height unavailable")
}

func (s *Service) isAdministrator(p id.Principal) bool {
	return !p.IsNil() && p == s.admin
}

// -----------------------------------------------------------------------------
// Store helpers (call inside a transaction scope)
// -----------------------------------------------------------------------------

func (s *Service) loadAsset(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	a, err := s.assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeMissingAsset, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return a, nil
}

func (s *Service) saveAsset(ctx context.Context, a *models.Asset) error {
	if err := s.assets.Update(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeMissingAsset, "asset not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	return nil
}

func (s *Service) bump(ctx context.Context, height id.Height, categories ...string) error {
	for _, category := range categories {
		if _, err := s.counters.Increment(ctx, category, height); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update metric counter")
		}
	}
	return nil
}

// activeGrant applies default-deny: a missing slot is the same as a revoked one.
func (s *Service) activeGrant(ctx context.Context, assetID id.AssetID, viewer id.Principal) (bool, error) {
	if viewer.IsNil() {
		return false, nil
	}
	g, err := s.grants.Find(ctx, assetID, viewer)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	return models.Authorizes(g), nil
}

func requireActive(a *models.Asset) error {
	if a.IsArchived() {
		return dErrors.New(dErrors.CodeConflict, "asset is archived")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Instrumentation
// -----------------------------------------------------------------------------

// instrument opens a span and returns a finisher that records outcome metrics.
// Usage: ctx, done := s.instrument(ctx, "op"); defer func() { done(err) }()
func (s *Service) instrument(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "asset."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			code := dErrors.CodeOf(err)
			outcome = string(code)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			if isDenial(code) && s.metrics != nil {
				s.metrics.IncrementAuthorizationDenied(operation)
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, outcome, start)
		}
		span.End()
	}
}

func isDenial(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeAdministrativeAccessRequired,
		dErrors.CodeAccessPermissionDenied,
		dErrors.CodeOwnershipVerificationFailed,
		dErrors.CodeViewAuthorizationRejected:
		return true
	}
	return false
}

func assetAttr(assetID id.AssetID) attribute.KeyValue {
	return attribute.Int64("asset.id", int64(assetID))
}

// emitAudit hands a committed change to the audit publisher. Failures are logged,
// never returned: the write has already committed.
func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.Action = string(action)
	event.RequestID = requestcontext.RequestID(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", action,
			"asset_id", event.AssetID,
			"request_id", event.RequestID,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.IncrementAuditEmitFailures()
		}
	}
}
