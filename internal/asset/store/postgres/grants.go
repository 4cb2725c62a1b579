package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

type GrantStore struct {
	db *sql.DB
}

const grantColumns = `asset_id, viewer, granted, granted_at, level, revoked_at`

// Upsert writes the (asset, viewer) slot. Rows are never deleted.
func (s *GrantStore) Upsert(ctx context.Context, g *models.Grant) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO asset_grants (`+grantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id, viewer) DO UPDATE
		SET granted = EXCLUDED.granted,
		    granted_at = EXCLUDED.granted_at,
		    level = EXCLUDED.level,
		    revoked_at = EXCLUDED.revoked_at`,
		int64(g.AssetID), g.Viewer.String(), g.Granted, int64(g.GrantedAt), string(g.Level), int64(g.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *GrantStore) Find(ctx context.Context, assetID id.AssetID, viewer id.Principal) (*models.Grant, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM asset_grants WHERE asset_id = $1 AND viewer = $2`,
		int64(assetID), viewer.String())
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find grant: %w", err)
	}
	return g, nil
}

// ListByAsset returns every slot for the asset, revoked ones included, ordered by viewer.
func (s *GrantStore) ListByAsset(ctx context.Context, assetID id.AssetID) ([]*models.Grant, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+grantColumns+` FROM asset_grants WHERE asset_id = $1 ORDER BY viewer`, int64(assetID))
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []*models.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return out, nil
}

func (s *GrantStore) CountActive(ctx context.Context, assetID id.AssetID) (int, error) {
	var n int
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM asset_grants WHERE asset_id = $1 AND granted`, int64(assetID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count grants: %w", err)
	}
	return n, nil
}

func scanGrant(row rowScanner) (*models.Grant, error) {
	var (
		g                             models.Grant
		assetID, grantedAt, revokedAt int64
		viewer, level                 string
	)
	if err := row.Scan(&assetID, &viewer, &g.Granted, &grantedAt, &level, &revokedAt); err != nil {
		return nil, err
	}
	g.AssetID = id.AssetID(assetID)
	g.Viewer = id.Principal(viewer)
	g.GrantedAt = id.Height(grantedAt)
	g.Level = models.AccessLevel(level)
	g.RevokedAt = id.Height(revokedAt)
	return &g, nil
}
