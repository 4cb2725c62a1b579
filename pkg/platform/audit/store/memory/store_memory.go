package memory

import (
	"context"
	"sync"

	id "citadel/pkg/domain"
	audit "citadel/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.AssetID][]audit.Event
	order  []audit.Event
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.AssetID][]audit.Event)
	s.order = nil
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.AssetID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.AssetID] = append(s.events[event.AssetID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByAsset(_ context.Context, assetID id.AssetID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[assetID]...), nil
}

// ListRecent returns the most recent limit events across all assets, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.order) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.order[start:]...), nil
}
