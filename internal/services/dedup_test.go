package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

func TestStoreDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewStoreDeduper(storage.NewMemoryStore(), time.Hour)

	first, err := d.FirstSeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	// Events without an id cannot be deduplicated.
	for i := 0; i < 2; i++ {
		ok, err := d.FirstSeen(ctx, "")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisDeduper(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	d := NewRedisDeduper(client, time.Minute)

	first, err := d.FirstSeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	mr.FastForward(2 * time.Minute)
	afterTTL, err := d.FirstSeen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, afterTTL)
}

func TestRedisDeduperUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisDeduper(client, time.Minute).FirstSeen(context.Background(), "wamid.1")
	assert.Error(t, err)
}
