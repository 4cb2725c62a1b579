// Package memory holds the in-memory ledger: the asset registry, access matrix,
// ownership transition log and metric counters behind a single transaction lock.
package memory

import (
	"context"
	"sync"

	dErrors "citadel/pkg/domain-errors"
)

// Ledger bundles the four stores so a transaction reads and writes them together.
// Mutating transactions take the write lock and keep an undo journal; a failed
// transaction replays the journal so no partial multi-store update survives.
type Ledger struct {
	mu sync.RWMutex

	Assets      *AssetStore
	Grants      *GrantStore
	Transitions *TransitionLog
	Counters    *CounterStore
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Assets:      NewAssetStore(),
		Grants:      NewGrantStore(),
		Transitions: NewTransitionLog(),
		Counters:    NewCounterStore(),
	}
}

type journal struct {
	owner *Ledger
	undo  []func()
}

type journalKey struct{}

type readKey struct{}

// remember records how to reverse a write made inside a transaction. Writes made
// outside a transaction are not journaled.
func remember(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// RunInTx runs fn with exclusive access to every store. If fn returns an error or
// panics, all writes it made are reversed before the lock is released.
func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok && j.owner == l {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	j := &journal{owner: l}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
		if err != nil {
			j.rollback()
		}
	}()
	return fn(context.WithValue(ctx, journalKey{}, j))
}

// RunInReadTx runs fn against a stable snapshot: no mutating transaction can
// interleave with it.
func (l *Ledger) RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok && j.owner == l {
		return fn(ctx)
	}
	if owner, ok := ctx.Value(readKey{}).(*Ledger); ok && owner == l {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(context.WithValue(ctx, readKey{}, l))
}
