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

type CounterStore struct {
	db *sql.DB
}

// Increment adds one to category in a single statement; an absent row starts at zero.
func (s *CounterStore) Increment(ctx context.Context, category string, height id.Height) (*models.Counter, error) {
	var value int64
	err := conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO metric_counters (category, value, updated_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (category) DO UPDATE
		SET value = metric_counters.value + 1, updated_at = EXCLUDED.updated_at
		RETURNING value`,
		category, int64(height),
	).Scan(&value)
	if err != nil {
		return nil, fmt.Errorf("increment counter %s: %w", category, err)
	}
	return &models.Counter{Category: category, Value: uint64(value), UpdatedAt: height}, nil
}

func (s *CounterStore) Get(ctx context.Context, category string) (*models.Counter, error) {
	var value, updated int64
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT value, updated_at FROM metric_counters WHERE category = $1`, category).Scan(&value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get counter %s: %w", category, err)
	}
	return &models.Counter{Category: category, Value: uint64(value), UpdatedAt: id.Height(updated)}, nil
}

func (s *CounterStore) List(ctx context.Context) ([]*models.Counter, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT category, value, updated_at FROM metric_counters ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var out []*models.Counter
	for rows.Next() {
		var (
			c              models.Counter
			value, updated int64
		)
		if err := rows.Scan(&c.Category, &value, &updated); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		c.Value = uint64(value)
		c.UpdatedAt = id.Height(updated)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return out, nil
}
