// Package cache stores credential schema documents. Schemas are immutable
// templates, so a stale entry is only ever an older copy of the same bytes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"ulp-gateway/pkg/platform/sentinel"
)

// Cache is a byte cache keyed by schema id. Get returns sentinel.ErrNotFound
// on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is an in-process LRU whose entries expire after a fixed TTL.
type Memory struct {
	lru *lru.LRU[string, []byte]
}

// NewMemory builds an LRU of at most size entries (minimum 1).
func NewMemory(size int, ttl time.Duration) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{lru: lru.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

const redisKeyPrefix = "ulp:schema:"

// Redis shares schemas across gateway instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
