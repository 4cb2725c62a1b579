package memory

import (
	"context"
	"sort"
	"sync"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

type grantKey struct {
	asset  id.AssetID
	viewer id.Principal
}

// GrantStore is the access control matrix. Slots are upserted, never deleted.
type GrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]*models.Grant
}

func NewGrantStore() *GrantStore {
	return &GrantStore{grants: make(map[grantKey]*models.Grant)}
}

func (s *GrantStore) Upsert(ctx context.Context, grant *models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{asset: grant.AssetID, viewer: grant.Viewer}
	prev, existed := s.grants[key]
	s.grants[key] = grant.Clone()
	remember(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.grants[key] = prev
			return
		}
		delete(s.grants, key)
	})
	return nil
}

// Find returns the grant slot for (assetID, viewer) or sentinel.ErrNotFound.
func (s *GrantStore) Find(_ context.Context, assetID id.AssetID, viewer id.Principal) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.grants[grantKey{asset: assetID, viewer: viewer}]; ok {
		return g.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByAsset returns every slot for the asset, revoked ones included, ordered by viewer.
func (s *GrantStore) ListByAsset(_ context.Context, assetID id.AssetID) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Grant
	for key, g := range s.grants {
		if key.asset == assetID {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Viewer < out[j].Viewer })
	return out, nil
}

// CountActive counts viewers whose grant is currently in force.
func (s *GrantStore) CountActive(_ context.Context, assetID id.AssetID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key, g := range s.grants {
		if key.asset == assetID && g.Granted {
			n++
		}
	}
	return n, nil
}
