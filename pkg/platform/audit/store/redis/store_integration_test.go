//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	audit "citadel/pkg/platform/audit"
	auditredis "citadel/pkg/platform/audit/store/redis"
	"citadel/pkg/testutil/containers"
)

type RedisAuditStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *auditredis.Store
}

func TestRedisAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisAuditStoreSuite))
}

func (s *RedisAuditStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = auditredis.New(s.redis.Client, auditredis.WithRecentCap(100))
}

func (s *RedisAuditStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisAuditStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	for _, e := range []audit.Event{
		{AssetID: 1, Action: "a", Actor: "alice"},
		{AssetID: 2, Action: "b", Actor: "bob"},
		{AssetID: 1, Action: "c", Actor: "alice"},
	} {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	byAsset, err := s.store.ListByAsset(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(byAsset, 2)
	s.Equal("a", byAsset[0].Action)
	s.Equal("c", byAsset[1].Action)

	recent, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("b", recent[0].Action)
	s.Equal("c", recent[1].Action)
}
