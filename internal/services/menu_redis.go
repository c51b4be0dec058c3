package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMenuBackend shares menu mappings between instances. Keys expire after
// ttl, which bounds memory without a user ceiling.
type RedisMenuBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisMenuBackend creates a backend on client.
func NewRedisMenuBackend(client redis.UniversalClient, ttl time.Duration) *RedisMenuBackend {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisMenuBackend{client: client, ttl: ttl}
}

func (b *RedisMenuBackend) key(phone string) string { return "menu:phone:" + phone }

func (b *RedisMenuBackend) Load(ctx context.Context, phone string) (*MenuMapping, error) {
	v, err := b.client.Get(ctx, b.key(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m MenuMapping
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *RedisMenuBackend) Store(ctx context.Context, phone string, m *MenuMapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.key(phone), data, b.ttl).Err()
}

func (b *RedisMenuBackend) Delete(ctx context.Context, phone string) (bool, error) {
	n, err := b.client.Del(ctx, b.key(phone)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
