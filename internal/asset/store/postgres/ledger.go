// Package postgres persists the asset ledger in PostgreSQL. All four stores share one
// *sql.DB and join the transaction carried in the context by pkg/platform/tx.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	dErrors "citadel/pkg/domain-errors"
	txcontext "citadel/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Ledger bundles the PostgreSQL-backed stores and their transaction scope.
type Ledger struct {
	db *sql.DB

	Assets      *AssetStore
	Grants      *GrantStore
	Transitions *TransitionLog
	Counters    *CounterStore
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{
		db:          db,
		Assets:      &AssetStore{db: db},
		Grants:      &GrantStore{db: db},
		Transitions: &TransitionLog{db: db},
		Counters:    &CounterStore{db: db},
	}
}

// RunInTx runs fn in a read-committed transaction. Row locks taken by the stores
// (FOR UPDATE on the asset, an advisory lock for id allocation) serialize writers
// that touch the same asset.
func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx = context.WithValue(ctx, writeKey{}, true)
	return wrapTxErr(txcontext.Run(ctx, l.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn))
}

// RunInReadTx runs fn against one repeatable-read snapshot.
func (l *Ledger) RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return wrapTxErr(txcontext.Run(ctx, l.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn))
}

// wrapTxErr leaves coded errors from fn alone and marks driver failures internal.
func wrapTxErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "transaction failed")
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func conn(ctx context.Context, db *sql.DB) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

type writeKey struct{}

// forUpdate appends a row lock when the caller is inside a write transaction.
// Read-only transactions cannot take row locks.
func forUpdate(ctx context.Context, query string) string {
	if _, ok := txcontext.From(ctx); !ok {
		return query
	}
	if write, _ := ctx.Value(writeKey{}).(bool); write {
		return query + " FOR UPDATE"
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
