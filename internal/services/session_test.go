package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSessions(clock *testClock, ttl time.Duration) (*SessionManager, *storage.MemoryStore) {
	store := storage.NewMemoryStore().WithClock(clock.Now)
	sm := NewSessionManager(store, ttl)
	sm.now = clock.Now
	return sm, store
}

func TestSessionManagerFlowLifecycle(t *testing.T) {
	ctx := context.Background()
	sm, _ := newTestSessions(newTestClock(), time.Hour)

	inFlow, err := sm.IsInFlow(ctx, "1")
	require.NoError(t, err)
	assert.False(t, inFlow)

	require.NoError(t, sm.StartFlow(ctx, "1", models.FlowCompatibility))
	inFlow, err = sm.IsInFlow(ctx, "1")
	require.NoError(t, err)
	assert.True(t, inFlow)

	step := 1
	data := models.FlowData{Payload: models.CompatibilityData{PartnerName: "Ravi"}}
	require.NoError(t, sm.SetSession(ctx, "1", models.SessionUpdate{CurrentStep: &step, FlowData: &data}))

	require.NoError(t, sm.ClearFlow(ctx, "1"))
	s, err := sm.GetSession(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.InFlow())
	assert.Zero(t, s.CurrentStep)
	assert.Nil(t, s.FlowData.Payload)
}

func TestSessionManagerExpiredSessionIsNotInFlow(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	sm, store := newTestSessions(clock, 24*time.Hour)

	require.NoError(t, sm.StartFlow(ctx, "1", models.FlowOnboarding))
	clock.Advance(25 * time.Hour)

	inFlow, err := sm.IsInFlow(ctx, "1")
	require.NoError(t, err)
	assert.False(t, inFlow)

	// Lazy expiry removes the stored row too.
	_, err = store.GetSession(ctx, "1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionManagerDeleteExpired(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	sm, store := newTestSessions(clock, time.Hour)

	require.NoError(t, sm.StartFlow(ctx, "old", models.FlowOnboarding))
	clock.Advance(2 * time.Hour)
	require.NoError(t, sm.StartFlow(ctx, "new", models.FlowOnboarding))

	expired, err := sm.ExpiredSessions(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	n, err := sm.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.GetSession(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	inFlow, err := sm.IsInFlow(ctx, "new")
	require.NoError(t, err)
	assert.True(t, inFlow)
}
