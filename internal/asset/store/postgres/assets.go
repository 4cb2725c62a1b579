package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

// allocationLock keys the advisory lock that serializes NextID and Create.
const allocationLock = 0x61737365

type AssetStore struct {
	db *sql.DB
}

const assetColumns = `id, designation, owner, size_bytes, registered_at, summary, tags, created_at, last_modified_at, status`

// Create inserts a new record. Returns sentinel.ErrAlreadyUsed if the id is taken.
// It holds the allocation lock like NextID, so an explicit id committed by another
// transaction is visible to the next allocator and never handed out twice.
func (s *AssetStore) Create(ctx context.Context, a *models.Asset) error {
	q := conn(ctx, s.db)
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, allocationLock); err != nil {
		return fmt.Errorf("lock id allocation: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		int64(a.ID), a.Designation, a.Owner.String(), int64(a.SizeBytes), int64(a.RegisteredAt),
		a.Summary, pq.StringArray(a.Tags), a.CreatedAt, int64(a.LastModifiedAt), string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// FindByID loads a record, locking its row when called inside a write transaction.
func (s *AssetStore) FindByID(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx,
		forUpdate(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`), int64(assetID))
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return a, nil
}

// Update rewrites the mutable columns. registered_at and created_at are never written.
func (s *AssetStore) Update(ctx context.Context, a *models.Asset) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `
		UPDATE assets
		SET designation = $2, owner = $3, size_bytes = $4, summary = $5, tags = $6,
		    last_modified_at = $7, status = $8
		WHERE id = $1`,
		int64(a.ID), a.Designation, a.Owner.String(), int64(a.SizeBytes), a.Summary,
		pq.StringArray(a.Tags), int64(a.LastModifiedAt), string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// NextID returns one past the highest stored id, or sentinel.ErrExhausted once
// MaxAssetID is taken. Inside a transaction it takes a transaction-scoped advisory
// lock so concurrent allocators cannot pick the same id.
func (s *AssetStore) NextID(ctx context.Context) (id.AssetID, error) {
	q := conn(ctx, s.db)
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, allocationLock); err != nil {
		return 0, fmt.Errorf("lock id allocation: %w", err)
	}
	var highest int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM assets`).Scan(&highest); err != nil {
		return 0, fmt.Errorf("allocate asset id: %w", err)
	}
	if id.AssetID(highest) >= id.MaxAssetID {
		return 0, fmt.Errorf("allocate asset id after %d: %w", highest, sentinel.ErrExhausted)
	}
	return id.AssetID(highest) + 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		a                                       models.Asset
		assetID, size, registered, lastModified int64
		owner, status                           string
		tags                                    pq.StringArray
	)
	err := row.Scan(&assetID, &a.Designation, &owner, &size, &registered, &a.Summary,
		&tags, &a.CreatedAt, &lastModified, &status)
	if err != nil {
		return nil, err
	}
	a.ID = id.AssetID(assetID)
	a.Owner = id.Principal(owner)
	a.SizeBytes = uint64(size)
	a.RegisteredAt = id.Height(registered)
	a.LastModifiedAt = id.Height(lastModified)
	a.Status = models.Status(status)
	a.Tags = []string(tags)
	return &a, nil
}
