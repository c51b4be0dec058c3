package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryStoreCreateUserDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	u, err := store.CreateUser(ctx, "919876543210")
	require.NoError(t, err)
	assert.False(t, u.ProfileComplete)
	assert.Equal(t, "en", u.PreferredLanguage)

	_, err = store.CreateUser(ctx, "919876543210")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.GetUser(ctx, "15550000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateUserIsPartial(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateUser(ctx, "1")
	require.NoError(t, err)

	name := "Asha"
	_, err = store.UpdateUser(ctx, "1", models.UserUpdate{Name: &name})
	require.NoError(t, err)

	place := "Pune"
	u, err := store.UpdateUser(ctx, "1", models.UserUpdate{BirthPlace: &place})
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, "Pune", u.BirthPlace)

	_, err = store.UpdateUser(ctx, "missing", models.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	u, err := store.CreateUser(ctx, "1")
	require.NoError(t, err)

	u.Name = "mutated"
	got, err := store.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, got.Name)
}

func TestMemoryStoreSetSessionMergesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore().WithClock(clock.Now)

	flow, step := models.FlowOnboarding, 1
	require.NoError(t, store.SetSession(ctx, "1", models.SessionUpdate{CurrentFlow: &flow, CurrentStep: &step}))

	clock.Advance(time.Minute)
	next := 2
	require.NoError(t, store.SetSession(ctx, "1", models.SessionUpdate{CurrentStep: &next}))

	s, err := store.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.FlowOnboarding, s.CurrentFlow)
	assert.Equal(t, 2, s.CurrentStep)
	assert.Equal(t, clock.Now(), s.LastActivity)
}

func TestMemoryStoreExpiredSessions(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore().WithClock(clock.Now)

	require.NoError(t, store.SetSession(ctx, "old", models.SessionUpdate{}))
	clock.Advance(2 * time.Hour)
	require.NoError(t, store.SetSession(ctx, "fresh", models.SessionUpdate{}))

	cutoff := clock.Now().Add(-time.Hour)
	expired, err := store.ExpiredSessions(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].PhoneNumber)

	n, err := store.DeleteExpiredSessions(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.GetSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetSession(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStoreMarkEvent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore().WithClock(clock.Now)

	first, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	clock.Advance(2 * time.Hour)
	afterTTL, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterTTL)
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		return NewMemoryStore().WithClock(now)
	})
}
