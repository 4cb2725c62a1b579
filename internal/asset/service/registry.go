package service

import (
	"context"
	"errors"
	"fmt"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/sentinel"
	"citadel/pkg/requestcontext"
)

// Register creates a record owned by the acting principal. A zero ID allocates the
// next free identifier. Validation runs before the transaction opens; the record and
// its counters are written together or not at all.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "register", assetAttr(req.ID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limits.CheckRegistration(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var created *models.Asset
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r := *req
		if r.ID.IsNil() {
			next, err := s.assets.NextID(ctx)
			if errors.Is(err, sentinel.ErrExhausted) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "asset id space is exhausted")
			}
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate asset id")
			}
			r.ID = next
		}
		a, err := models.NewAsset(&r, caller, height, now, s.limits)
		if err != nil {
			return err
		}
		if err := s.assets.Create(ctx, a); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateRegistration, fmt.Sprintf("asset %d is already registered", a.ID))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create asset")
		}
		if err := s.bump(ctx, height, models.MetricTotalRegisteredAssets, models.MetricRegistryOperations); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementAssetsRegistered()
	}
	s.logger.InfoContext(ctx, "asset registered",
		"asset_id", created.ID,
		"owner", created.Owner,
		"height", height,
	)
	s.emitAudit(ctx, audit.EventAssetRegistered, audit.Event{
		AssetID: created.ID,
		Actor:   caller,
		Height:  height,
	})
	return created, nil
}

// Get looks a record up by identifier. Existence is not sensitive, so no
// authorization applies.
func (s *Service) Get(ctx context.Context, assetID id.AssetID) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "get", assetAttr(assetID))
	defer func() { done(err) }()

	var a *models.Asset
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		a, err = s.loadAsset(ctx, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateMetadata applies a partial update. Only the owner may edit metadata, and
// every supplied field is re-validated.
func (s *Service) UpdateMetadata(ctx context.Context, assetID id.AssetID, req *models.UpdateMetadataRequest) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "update_metadata", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "update must set at least one field")
	}

	var updated *models.Asset
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) {
			return dErrors.New(dErrors.CodeOwnershipVerificationFailed, "only the owner may update metadata")
		}
		if err := requireActive(a); err != nil {
			return err
		}
		if err := s.limits.CheckMetadataUpdate(req); err != nil {
			return err
		}
		a.ApplyMetadata(req, height)
		if err := s.saveAsset(ctx, a); err != nil {
			return err
		}
		if err := s.bump(ctx, height, models.MetricRegistryOperations, models.MetricMetadataUpdates); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.EventMetadataUpdated, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Height:  height,
	})
	return updated, nil
}

// AddTag appends one tag to an owner's asset.
func (s *Service) AddTag(ctx context.Context, assetID id.AssetID, tag string) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "add_tag", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}

	var updated *models.Asset
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) {
			return dErrors.New(dErrors.CodeOwnershipVerificationFailed, "only the owner may tag an asset")
		}
		if err := requireActive(a); err != nil {
			return err
		}
		if err := a.AddTag(tag, height, s.limits); err != nil {
			return err
		}
		if err := s.saveAsset(ctx, a); err != nil {
			return err
		}
		if err := s.bump(ctx, height, models.MetricRegistryOperations, models.MetricMetadataUpdates); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.EventTagAdded, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Height:  height,
		Reason:  tag,
	})
	return updated, nil
}

// Archive marks the asset archived. Archiving an archived asset is a no-op.
func (s *Service) Archive(ctx context.Context, assetID id.AssetID) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "archive", assetAttr(assetID))
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
		archived *models.Asset
		changed  bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			return dErrors.New(dErrors.CodeOwnershipVerificationFailed, "only the owner or administrator may archive an asset")
		}
		archived = a
		if a.IsArchived() {
			return nil
		}
		a.ApplyStatus(models.StatusArchived, height)
		if err := s.saveAsset(ctx, a); err != nil {
			return err
		}
		changed = true
		return s.bump(ctx, height, models.MetricRegistryOperations)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emitAudit(ctx, audit.EventAssetArchived, audit.Event{
			AssetID: assetID,
			Actor:   caller,
			Height:  height,
		})
	}
	return archived, nil
}

// SetStatus is the administrator's override of the status code.
func (s *Service) SetStatus(ctx context.Context, assetID id.AssetID, status string) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "set_status", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !s.isAdministrator(caller) {
		return nil, dErrors.New(dErrors.CodeAdministrativeAccessRequired, "only the administrator may set status")
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limits.CheckStatus(status); err != nil {
		return nil, err
	}

	var updated *models.Asset
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		a.ApplyStatus(models.Status(status), height)
		if err := s.saveAsset(ctx, a); err != nil {
			return err
		}
		if err := s.bump(ctx, height, models.MetricRegistryOperations); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "asset status overridden",
		"asset_id", assetID,
		"status", status,
	)
	s.emitAudit(ctx, audit.EventStatusOverridden, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Height:  height,
		Reason:  status,
	})
	return updated, nil
}

// RequireView returns the record if the acting principal may view it: the owner,
// the administrator, or a viewer with an active grant. Anyone else is rejected
// explicitly rather than receiving an empty result.
func (s *Service) RequireView(ctx context.Context, assetID id.AssetID) (_ *models.Asset, err error) {
	ctx, done := s.instrument(ctx, "require_view", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var a *models.Asset
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		a, err = s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if a.IsOwnedBy(caller) || s.isAdministrator(caller) {
			return nil
		}
		ok, err := s.activeGrant(ctx, assetID, caller)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeViewAuthorizationRejected, "caller may not view this asset")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeViewAuthorizationRejected) {
			s.emitDenied(ctx, assetID, caller, "view")
		}
		return nil, err
	}
	return a, nil
}

// emitDenied records a rejected read. Height is best-effort on this path.
func (s *Service) emitDenied(ctx context.Context, assetID id.AssetID, caller id.Principal, reason string) {
	height, _ := s.currentHeight(ctx)
	s.emitAudit(ctx, audit.EventAccessDenied, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Height:  height,
		Reason:  reason,
	})
}
