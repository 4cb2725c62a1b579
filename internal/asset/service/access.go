package service

import (
	"context"
	"errors"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/sentinel"
)

// Grant issues or refreshes a view grant for viewer. Only the owner or the
// administrator may change the access matrix.
func (s *Service) Grant(ctx context.Context, assetID id.AssetID, viewer id.Principal, level string) (_ *models.Grant, err error) {
	ctx, done := s.instrument(ctx, "grant", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if viewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "viewer is required")
	}
	if level != "" {
		if err := s.limits.CheckLevel(level); err != nil {
			return nil, err
		}
	}

	var granted *models.Grant
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			return dErrors.New(dErrors.CodeAccessPermissionDenied, "only the owner or administrator may grant access")
		}
		if err := requireActive(a); err != nil {
			return err
		}
		g := models.NewGrant(assetID, viewer, models.AccessLevel(level), height)
		if err := s.grants.Upsert(ctx, g); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write grant")
		}
		if err := s.bump(ctx, height, models.MetricAccessGrants); err != nil {
			return err
		}
		granted = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.EventAccessGranted, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Subject: viewer,
		Height:  height,
		Reason:  string(granted.Level),
	})
	return granted, nil
}

// Revoke flips an existing grant to not-granted. The slot is kept. Revoking a
// revoked grant is a no-op; revoking a slot that never existed is NotFound.
func (s *Service) Revoke(ctx context.Context, assetID id.AssetID, viewer id.Principal) (_ *models.Grant, err error) {
	ctx, done := s.instrument(ctx, "revoke", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}

	var (
		revoked *models.Grant
		changed bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			return dErrors.New(dErrors.CodeAccessPermissionDenied, "only the owner or administrator may revoke access")
		}
		g, err := s.grants.Find(ctx, assetID, viewer)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "no grant exists for viewer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
		}
		revoked = g
		if !g.Granted {
			return nil
		}
		g.Revoke(height)
		if err := s.grants.Upsert(ctx, g); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write grant")
		}
		changed = true
		return s.bump(ctx, height, models.MetricAccessRevocations)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emitAudit(ctx, audit.EventAccessRevoked, audit.Event{
			AssetID: assetID,
			Actor:   caller,
			Subject: viewer,
			Height:  height,
		})
	}
	return revoked, nil
}

// IsAuthorized is the default-deny matrix lookup: false unless an active grant exists.
func (s *Service) IsAuthorized(ctx context.Context, assetID id.AssetID, viewer id.Principal) (ok bool, err error) {
	ctx, done := s.instrument(ctx, "is_authorized", assetAttr(assetID))
	defer func() { done(err) }()

	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		ok, err = s.activeGrant(ctx, assetID, viewer)
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ListGrants returns every slot for the asset, revoked ones included. Visible to
// the owner and the administrator only.
func (s *Service) ListGrants(ctx context.Context, assetID id.AssetID) (_ []*models.Grant, err error) {
	ctx, done := s.instrument(ctx, "list_grants", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var grants []*models.Grant
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			return dErrors.New(dErrors.CodeViewAuthorizationRejected, "only the owner or administrator may list grants")
		}
		grants, err = s.grants.ListByAsset(ctx, assetID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}
