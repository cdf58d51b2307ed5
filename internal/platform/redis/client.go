// Package redis builds the optional shared Redis connection used by the
// credential schema cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ulp-gateway/internal/platform/config"
)

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
}

// New parses cfg.URL, applies the pool and timeout overrides and pings the
// server. An empty URL means Redis is not configured: New returns nil, nil.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: rdb}, nil
}

func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	positive := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	positive(&opts.DialTimeout, cfg.DialTimeout)
	positive(&opts.ReadTimeout, cfg.ReadTimeout)
	positive(&opts.WriteTimeout, cfg.WriteTimeout)
}

// Health pings the server. A nil client (Redis not configured) is healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Ping(ctx).Err()
}
