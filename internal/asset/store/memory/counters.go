package memory

import (
	"context"
	"sort"
	"sync"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

// CounterStore holds operational metric counters keyed by category.
type CounterStore struct {
	mu       sync.RWMutex
	counters map[string]models.Counter
}

func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[string]models.Counter)}
}

// Increment adds one to category (absent counts as zero) and stamps height.
func (s *CounterStore) Increment(ctx context.Context, category string, height id.Height) (*models.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.counters[category]
	next := models.Counter{Category: category, Value: prev.Value + 1, UpdatedAt: height}
	s.counters[category] = next
	remember(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.counters[category] = prev
			return
		}
		delete(s.counters, category)
	})
	return &next, nil
}

func (s *CounterStore) Get(_ context.Context, category string) (*models.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.counters[category]; ok {
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns every counter ordered by category.
func (s *CounterStore) List(_ context.Context) ([]*models.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Counter, 0, len(s.counters))
	for _, c := range s.counters {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
