package service

import (
	"context"
	"errors"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/sentinel"
)

// Analyze derives point-in-time analytics for caller. The asset lookup, the
// authorization gate and the grant count all read one snapshot.
func (s *Service) Analyze(ctx context.Context, assetID id.AssetID, caller id.Principal) (_ *models.Analytics, err error) {
	ctx, done := s.instrument(ctx, "analyze", assetAttr(assetID))
	defer func() { done(err) }()

	height, err := s.currentHeight(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Analytics
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		a, err := s.loadAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if !a.IsOwnedBy(caller) && !s.isAdministrator(caller) {
			ok, err := s.activeGrant(ctx, assetID, caller)
			if err != nil {
				return err
			}
			if !ok {
				return dErrors.New(dErrors.CodeAccessPermissionDenied, "caller may not analyze this asset")
			}
		}
		viewers, err := s.grants.CountActive(ctx, assetID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active grants")
		}
		result = models.NewAnalytics(a, viewers, height)
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAccessPermissionDenied) {
			s.emitDenied(ctx, assetID, caller, "analyze")
		}
		return nil, err
	}
	return result, nil
}

// PerformanceScore is 5 per registered asset plus 2 per ownership transfer.
func (s *Service) PerformanceScore(ctx context.Context) (_ uint64, err error) {
	ctx, done := s.instrument(ctx, "performance_score")
	defer func() { done(err) }()

	var score uint64
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		total, err := s.counterValue(ctx, models.MetricTotalRegisteredAssets)
		if err != nil {
			return err
		}
		transfers, err := s.counterValue(ctx, models.MetricOwnershipTransferCounter)
		if err != nil {
			return err
		}
		score = models.PerformanceScore(total, transfers)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// Counters returns every metric counter and the performance score from one snapshot.
func (s *Service) Counters(ctx context.Context) (_ *models.CounterSnapshot, err error) {
	ctx, done := s.instrument(ctx, "counters")
	defer func() { done(err) }()

	var snapshot *models.CounterSnapshot
	err = s.tx.RunInReadTx(ctx, func(ctx context.Context) error {
		counters, err := s.counters.List(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list counters")
		}
		var total, transfers uint64
		for _, c := range counters {
			switch c.Category {
			case models.MetricTotalRegisteredAssets:
				total = c.Value
			case models.MetricOwnershipTransferCounter:
				transfers = c.Value
			}
		}
		snapshot = &models.CounterSnapshot{
			Counters:         counters,
			PerformanceScore: models.PerformanceScore(total, transfers),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// counterValue reads a counter, treating an absent category as zero.
func (s *Service) counterValue(ctx context.Context, category string) (uint64, error) {
	c, err := s.counters.Get(ctx, category)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counter")
	}
	return c.Value, nil
}
