package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ulp-gateway/pkg/platform/sentinel"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2, time.Hour)

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	require.NoError(t, c.Set(ctx, "c", []byte("3")))

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "oldest entry evicted")
	v, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "a", []byte("1")))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "a")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

type RedisCacheSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	cache *Redis
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	s.cache = NewRedis(client, time.Minute)
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "schema-1", []byte(`{"id":"schema-1"}`)))

	v, err := s.cache.Get(ctx, "schema-1")
	s.Require().NoError(err)
	s.JSONEq(`{"id":"schema-1"}`, string(v))
	s.True(s.mr.Exists("ulp:schema:schema-1"))
}

func (s *RedisCacheSuite) TestHonoursTTL() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "schema-1", []byte("x")))

	s.mr.FastForward(2 * time.Minute)

	_, err := s.cache.Get(ctx, "schema-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestUnavailable() {
	s.mr.Close()
	_, err := s.cache.Get(context.Background(), "schema-1")
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.ErrorIs(s.cache.Set(context.Background(), "k", []byte("v")), sentinel.ErrUnavailable)
}
