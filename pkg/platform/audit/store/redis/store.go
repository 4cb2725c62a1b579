// Package redis persists audit events in Redis streams: one stream per asset plus a
// capped stream of recent activity across all assets.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "citadel/pkg/domain"
	audit "citadel/pkg/platform/audit"
)

const (
	assetStreamPrefix = "audit:asset:"
	recentStream      = "audit:recent"

	defaultRecentCap = 10000
)

type Store struct {
	client    *redis.Client
	recentCap int64
}

type Option func(*Store)

// WithRecentCap bounds the cross-asset stream. Older entries are trimmed approximately.
func WithRecentCap(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.recentCap = n
		}
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, recentCap: defaultRecentCap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func assetStream(assetID id.AssetID) string {
	return assetStreamPrefix + assetID.String()
}

// Append writes the event to both streams in one MULTI/EXEC.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	values := encode(event)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: assetStream(event.AssetID), Values: values})
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: recentStream,
			MaxLen: s.recentCap,
			Approx: true,
			Values: values,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByAsset(ctx context.Context, assetID id.AssetID) ([]audit.Event, error) {
	msgs, err := s.client.XRange(ctx, assetStream(assetID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read asset audit stream: %w", err)
	}
	return decodeAll(msgs)
}

// ListRecent returns up to limit of the newest events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	msgs, err := s.client.XRevRangeN(ctx, recentStream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent audit stream: %w", err)
	}
	events, err := decodeAll(msgs)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func encode(e audit.Event) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"category":   string(e.Category),
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"action":     e.Action,
		"asset_id":   e.AssetID.String(),
		"actor":      e.Actor.String(),
		"subject":    e.Subject.String(),
		"height":     strconv.FormatUint(uint64(e.Height), 10),
		"reason":     e.Reason,
		"request_id": e.RequestID,
	}
}

func decodeAll(msgs []redis.XMessage) ([]audit.Event, error) {
	events := make([]audit.Event, 0, len(msgs))
	for _, msg := range msgs {
		e, err := decode(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("decode audit entry %s: %w", msg.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func decode(v map[string]any) (audit.Event, error) {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	assetID, err := strconv.ParseUint(str("asset_id"), 10, 64)
	if err != nil {
		return audit.Event{}, fmt.Errorf("asset_id: %w", err)
	}
	height, err := strconv.ParseUint(str("height"), 10, 64)
	if err != nil {
		return audit.Event{}, fmt.Errorf("height: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		return audit.Event{}, fmt.Errorf("timestamp: %w", err)
	}
	return audit.Event{
		ID:        str("id"),
		Category:  audit.EventCategory(str("category")),
		Timestamp: ts,
		Action:    str("action"),
		AssetID:   id.AssetID(assetID),
		Actor:     id.Principal(str("actor")),
		Subject:   id.Principal(str("subject")),
		Height:    id.Height(height),
		Reason:    str("reason"),
		RequestID: str("request_id"),
	}, nil
}
