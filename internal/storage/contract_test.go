package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// storeFactory returns an empty store reading time from now.
type storeFactory func(t *testing.T, now func() time.Time) Store

func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("users", func(t *testing.T) { testUserContract(t, newStore) })
	t.Run("sessions", func(t *testing.T) { testSessionContract(t, newStore) })
	t.Run("concurrent first session write", func(t *testing.T) { testConcurrentSessionCreate(t, newStore) })
	t.Run("session expiry", func(t *testing.T) { testSessionExpiry(t, newStore) })
	t.Run("events", func(t *testing.T) { testEventContract(t, newStore) })
}

func testUserContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(t, clock.Now)

	_, err := store.GetUser(ctx, "919876543210")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := store.CreateUser(ctx, "919876543210")
	require.NoError(t, err)
	assert.Equal(t, "919876543210", u.PhoneNumber)
	assert.False(t, u.ProfileComplete)

	_, err = store.CreateUser(ctx, "919876543210")
	assert.ErrorIs(t, err, ErrDuplicate)

	name, complete := "Asha", true
	_, err = store.UpdateUser(ctx, "919876543210", models.UserUpdate{Name: &name})
	require.NoError(t, err)
	u, err = store.UpdateUser(ctx, "919876543210", models.UserUpdate{ProfileComplete: &complete})
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.True(t, u.ProfileComplete)

	_, err = store.UpdateUser(ctx, "15550000000", models.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteUser(ctx, "919876543210"))
	assert.ErrorIs(t, store.DeleteUser(ctx, "919876543210"), ErrNotFound)

	// The phone number is free again after deletion.
	_, err = store.CreateUser(ctx, "919876543210")
	assert.NoError(t, err)
}

func testSessionContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(t, clock.Now)

	_, err := store.GetSession(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	flow, step := models.FlowCompatibility, 1
	data := models.FlowData{Payload: models.CompatibilityData{PartnerName: "Ravi"}}
	require.NoError(t, store.SetSession(ctx, "1", models.SessionUpdate{CurrentFlow: &flow, CurrentStep: &step, FlowData: &data}))

	clock.Advance(time.Minute)
	next := 2
	require.NoError(t, store.SetSession(ctx, "1", models.SessionUpdate{CurrentStep: &next}))

	s, err := store.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.FlowCompatibility, s.CurrentFlow)
	assert.Equal(t, 2, s.CurrentStep)
	assert.Equal(t, "Ravi", s.FlowData.Compatibility().PartnerName)
	assert.True(t, s.LastActivity.Equal(clock.Now()), "last activity %s, want %s", s.LastActivity, clock.Now())

	require.NoError(t, store.SetSession(ctx, "1", models.ClearedFlow()))
	s, err = store.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.False(t, s.InFlow())
	assert.Nil(t, s.FlowData.Payload)

	require.NoError(t, store.DeleteSession(ctx, "1"))
	require.NoError(t, store.DeleteSession(ctx, "1"))
	_, err = store.GetSession(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentSessionCreate(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(t, clock.Now)

	flow := models.FlowOnboarding
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			errs <- store.SetSession(ctx, "1", models.SessionUpdate{CurrentFlow: &flow, CurrentStep: &step})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	s, err := store.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.FlowOnboarding, s.CurrentFlow)
}

func testSessionExpiry(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(t, clock.Now)

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

	_, err = store.GetSession(ctx, "fresh")
	assert.NoError(t, err)
}

func testEventContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(t, clock.Now)

	first, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	_, err = store.MarkEvent(ctx, "wamid.2", 3*time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	n, err := store.DeleteExpiredEvents(ctx, clock.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	again, err = store.MarkEvent(ctx, "wamid.2", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	afterTTL, err := store.MarkEvent(ctx, "wamid.1", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterTTL)
}
