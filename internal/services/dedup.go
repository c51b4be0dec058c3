package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

// DefaultDedupTTL covers the provider's redelivery window.
const DefaultDedupTTL = 24 * time.Hour

// Deduper remembers event ids so redelivered webhooks are processed once.
type Deduper interface {
	// FirstSeen records id and reports whether it was new.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// StoreDeduper keeps event ids in the EventStore.
type StoreDeduper struct {
	store storage.EventStore
	ttl   time.Duration
}

// NewStoreDeduper creates a store-backed deduper.
func NewStoreDeduper(store storage.EventStore, ttl time.Duration) *StoreDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &StoreDeduper{store: store, ttl: ttl}
}

func (d *StoreDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	first, err := d.store.MarkEvent(ctx, id, d.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event: %w", err)
	}
	return first, nil
}

// RedisDeduper shares event ids across instances with SET NX.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) key(id string) string { return "wa:event:" + id }

func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.key(id), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
