// Package cache keeps the state blob and resolved display names in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// StateBackend stores the serialized state under one key. Each save
// overwrites the whole blob, so only one bot instance may write to a key.
type StateBackend struct {
	client *redis.Client
	key    string
}

func NewStateBackend(client *redis.Client, key string) *StateBackend {
	return &StateBackend{client: client, key: key}
}

func (b *StateBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", b.key, err)
	}
	return data, nil
}

func (b *StateBackend) Save(ctx context.Context, blob []byte) error {
	if err := b.client.Set(ctx, b.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b.key, err)
	}
	return nil
}

func (b *StateBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// NameCache remembers participant display names for ttl.
type NameCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewNameCache(client *redis.Client, prefix string, ttl time.Duration) *NameCache {
	return &NameCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *NameCache) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

// Get returns the cached name, or false on a miss or any Redis error.
func (c *NameCache) Get(ctx context.Context, id int64) (string, bool) {
	val, err := c.client.Get(ctx, c.key(id)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores name; errors are dropped since the cache is optional.
func (c *NameCache) Set(ctx context.Context, id int64, name string) {
	_ = c.client.Set(ctx, c.key(id), name, c.ttl).Err()
}
