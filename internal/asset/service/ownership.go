package service

import (
	"context"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
)

// TransferOwnership hands the asset to newOwner. The owner change, the transition
// log entry and the transfer counter commit together.
func (s *Service) TransferOwnership(ctx context.Context, assetID id.AssetID, newOwner id.Principal, reason string) (_ *models.Transition, err error) {
	ctx, done := s.instrument(ctx, "transfer_ownership", assetAttr(assetID))
	defer func() { done(err) }()

	caller, err := s.actingPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if newOwner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "new owner is required")
	}
	if err := s.limits.CheckReason(reason); err != nil {
		return nil, err
	}

	var entry *models.Transition
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			return dErrors.New(dErrors.CodeOwnershipVerificationFailed, "only the owner or administrator may transfer ownership")
		}
		if err := requireActive(a); err != nil {
			return err
		}
		if a.Owner == newOwner {
			return dErrors.New(dErrors.CodeValidation, "new owner already owns the asset")
		}
		from := a.TransferTo(newOwner, height)
		if err := s.saveAsset(ctx, a); err != nil {
			return err
		}
		entry, err = s.transitions.Append(ctx, models.TransitionInput{
			AssetID:  assetID,
			From:     from,
			To:       newOwner,
			AtHeight: height,
			Reason:   reason,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append ownership transition")
		}
		return s.bump(ctx, height, models.MetricOwnershipTransferCounter, models.MetricRegistryOperations)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementOwnershipTransfers()
	}
	s.logger.InfoContext(ctx, "ownership transferred",
		"asset_id", assetID,
		"from", entry.From,
		"to", entry.To,
		"sequence", entry.Sequence,
	)
	s.emitAudit(ctx, audit.EventOwnershipTransferred, audit.Event{
		AssetID: assetID,
		Actor:   caller,
		Subject: newOwner,
		Height:  height,
		Reason:  reason,
	})
	return entry, nil
}

// History returns the asset's ownership transitions in ascending sequence order.
func (s *Service) History(ctx context.Context, assetID id.AssetID) (_ []*models.Transition, err error) {
	ctx, done := s.instrument(ctx, "history", assetAttr(assetID))
	defer func() { done(err) }()

	var entries []*models.Transition
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		if _, err := s.loadAsset(ctx, assetID); err != nil {
			return err
		}
		entries, err = s.transitions.ReadAll(ctx, assetID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ownership history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
