package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
	"citadel/pkg/platform/sentinel"
)

// TransitionLog stores ownership transitions. The table rejects UPDATE and DELETE
// through a trigger, so the log stays append-only even for direct SQL access.
type TransitionLog struct {
	db *sql.DB
}

// Append assigns the next sequence number for the asset. Callers hold the asset row
// lock, so the MAX read and the insert cannot interleave with another transfer; the
// primary key still catches a violation of that contract.
func (l *TransitionLog) Append(ctx context.Context, in models.TransitionInput) (*models.Transition, error) {
	var seq int64
	err := conn(ctx, l.db).QueryRowContext(ctx, `
		INSERT INTO ownership_transitions (asset_id, seq, from_owner, to_owner, at_height, reason)
		SELECT $1::bigint, COALESCE(MAX(seq) + 1, 0), $2::text, $3::text, $4::bigint, $5::text
		FROM ownership_transitions WHERE asset_id = $1::bigint
		RETURNING seq`,
		int64(in.AssetID), in.From.String(), in.To.String(), int64(in.AtHeight), in.Reason,
	).Scan(&seq)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("append transition: %w", sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("append transition: %w", err)
	}
	return &models.Transition{
		AssetID:  in.AssetID,
		Sequence: uint64(seq),
		From:     in.From,
		To:       in.To,
		AtHeight: in.AtHeight,
		Reason:   in.Reason,
	}, nil
}

// ReadAll returns the asset's entries in ascending sequence order.
func (l *TransitionLog) ReadAll(ctx context.Context, assetID id.AssetID) ([]*models.Transition, error) {
	rows, err := conn(ctx, l.db).QueryContext(ctx, `
		SELECT seq, from_owner, to_owner, at_height, reason
		FROM ownership_transitions WHERE asset_id = $1 ORDER BY seq`, int64(assetID))
	if err != nil {
		return nil, fmt.Errorf("read transitions: %w", err)
	}
	defer rows.Close()

	out := []*models.Transition{}
	for rows.Next() {
		var (
			seq, atHeight int64
			from, to      string
			t             = models.Transition{AssetID: assetID}
		)
		if err := rows.Scan(&seq, &from, &to, &atHeight, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Sequence = uint64(seq)
		t.From = id.Principal(from)
		t.To = id.Principal(to)
		t.AtHeight = id.Height(atHeight)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transitions: %w", err)
	}
	return out, nil
}
