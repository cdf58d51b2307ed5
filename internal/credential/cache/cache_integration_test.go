//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ulp-gateway/pkg/platform/sentinel"
	"ulp-gateway/pkg/testutil/containers"
)

type RedisContainerSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *Redis
}

func TestRedisContainerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisContainerSuite))
}

func (s *RedisContainerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedis(s.redis.Client, 2*time.Second)
}

func (s *RedisContainerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisContainerSuite) TestSchemaRoundTripAndExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "schema-1", []byte(`{"id":"schema-1"}`)))

	v, err := s.cache.Get(ctx, "schema-1")
	s.Require().NoError(err)
	s.JSONEq(`{"id":"schema-1"}`, string(v))

	s.Eventually(func() bool {
		_, err := s.cache.Get(ctx, "schema-1")
		return errors.Is(err, sentinel.ErrNotFound)
	}, 5*time.Second, 100*time.Millisecond)
}
