//go:build integration

package containers

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"ulp-gateway/internal/platform/config"
	"ulp-gateway/internal/platform/redis"
)

// RedisContainer is a disposable Redis reached through the gateway's own
// client constructor, so pool and timeout settings match production.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *goredis.Client
}

// NewRedisContainer starts Redis and connects to it with redis.New.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.Default().Redis
	cfg.URL = url
	client, err := redis.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis container: %v", err)
	}

	return &RedisContainer{Container: container, URL: url, Client: client.Client}
}

// FlushAll empties the shared instance between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
