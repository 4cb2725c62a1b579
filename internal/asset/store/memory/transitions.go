package memory

import (
	"context"
	"sync"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
)

// TransitionLog keeps one append-only slice per asset. The slice index is the
// sequence number, so the next number never needs a scan.
type TransitionLog struct {
	mu      sync.RWMutex
	entries map[id.AssetID][]models.Transition
}

func NewTransitionLog() *TransitionLog {
	return &TransitionLog{entries: make(map[id.AssetID][]models.Transition)}
}

func (l *TransitionLog) Append(ctx context.Context, in models.TransitionInput) (*models.Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prevLen := len(l.entries[in.AssetID])
	entry := models.Transition{
		AssetID:  in.AssetID,
		Sequence: uint64(prevLen),
		From:     in.From,
		To:       in.To,
		AtHeight: in.AtHeight,
		Reason:   in.Reason,
	}
	l.entries[in.AssetID] = append(l.entries[in.AssetID], entry)
	remember(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries[in.AssetID] = l.entries[in.AssetID][:prevLen]
	})
	return &entry, nil
}

// ReadAll returns the asset's entries in ascending sequence order.
func (l *TransitionLog) ReadAll(_ context.Context, assetID id.AssetID) ([]*models.Transition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.entries[assetID]
	out := make([]*models.Transition, len(src))
	for i := range src {
		entry := src[i]
		out[i] = &entry
	}
	return out, nil
}
