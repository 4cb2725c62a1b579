package memory

import (
	"context"
	"fmt"
	"sync"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

// AssetStore is the keyed asset registry.
type AssetStore struct {
	mu     sync.RWMutex
	assets map[id.AssetID]*models.Asset
	maxID  id.AssetID
}

func NewAssetStore() *AssetStore {
	return &AssetStore{assets: make(map[id.AssetID]*models.Asset)}
}

// Create inserts a new record. Returns sentinel.ErrAlreadyUsed if the id is taken.
func (s *AssetStore) Create(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	prevMax := s.maxID
	s.assets[asset.ID] = asset.Clone()
	if asset.ID > s.maxID {
		s.maxID = asset.ID
	}
	remember(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.assets, asset.ID)
		s.maxID = prevMax
	})
	return nil
}

func (s *AssetStore) FindByID(_ context.Context, assetID id.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.assets[assetID]; ok {
		return a.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update replaces an existing record. Returns sentinel.ErrNotFound if absent.
func (s *AssetStore) Update(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.assets[asset.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.assets[asset.ID] = asset.Clone()
	remember(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.assets[asset.ID] = prev
	})
	return nil
}

// NextID returns one past the highest identifier ever stored. Records are never
// deleted, so the result has never been used. Returns sentinel.ErrExhausted once
// MaxAssetID is taken.
func (s *AssetStore) NextID(_ context.Context) (id.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.maxID >= id.MaxAssetID {
		return 0, fmt.Errorf("allocate asset id after %d: %w", s.maxID, sentinel.ErrExhausted)
	}
	return s.maxID + 1, nil
}
