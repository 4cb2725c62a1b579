package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"citadel/internal/ratelimit/models"
)

// RedisBucketStore keeps each sliding window in a sorted set scored by arrival
// time in milliseconds, so every replica draws from the same budget.
type RedisBucketStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisBucketStore wraps an existing client.
func NewRedisBucketStore(client redis.UniversalClient) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// allowScript trims expired members, then admits the request when the set is
// below the limit. It replies {allowed, count, oldest score}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// Allow records one request against key if the window still has room.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	raw, err := allowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run sliding window script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("unexpected sliding window reply length %d", len(raw))
	}

	resetAt := time.UnixMilli(raw[2]).Add(window)
	result := &models.Result{
		Allowed:   raw[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(raw[1]), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(now, resetAt)
	}
	return result, nil
}

// Reset clears the window for key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	return nil
}
