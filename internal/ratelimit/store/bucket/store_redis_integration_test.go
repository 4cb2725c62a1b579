//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"citadel/internal/ratelimit/store/bucket"
	"citadel/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketStoreSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "ratelimit:write:alice", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "ratelimit:write:alice", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, 60)

	result, err = s.store.Allow(ctx, "ratelimit:write:bob", 3, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	result, err := s.store.Allow(ctx, "ratelimit:read:carol", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(result.Allowed)

	result, err = s.store.Allow(ctx, "ratelimit:read:carol", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.False(result.Allowed)

	s.Eventually(func() bool {
		r, err := s.store.Allow(ctx, "ratelimit:read:carol", 1, 200*time.Millisecond)
		return err == nil && r.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ratelimit:write:dave", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "ratelimit:write:dave"))

	result, err := s.store.Allow(ctx, "ratelimit:write:dave", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
