package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
)

// DefaultSessionTTL is how long an idle session stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager applies the session TTL on top of a SessionStore. A session
// idle for longer than the TTL is treated as absent by every lookup, and is
// deleted on sight and by the cleanup job.
type SessionManager struct {
	store storage.SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionManager creates a session manager.
func NewSessionManager(store storage.SessionStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, ttl: ttl, now: time.Now}
}

// TTL returns the idle timeout.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// GetSession returns the live session for phone, or nil.
func (sm *SessionManager) GetSession(ctx context.Context, phone string) (*models.Session, error) {
	session, err := sm.store.GetSession(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(sm.now(), sm.ttl) {
		if err := sm.store.DeleteSession(ctx, phone); err != nil {
			logger.Warn().Err(err).Str("phone", phone).Msg("Failed to delete expired session")
		}
		return nil, nil
	}
	return session, nil
}

// SetSession upserts the session and refreshes its activity time.
func (sm *SessionManager) SetSession(ctx context.Context, phone string, update models.SessionUpdate) error {
	if err := sm.store.SetSession(ctx, phone, update); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// StartFlow puts phone at the first step of flow with an empty payload.
func (sm *SessionManager) StartFlow(ctx context.Context, phone, flow string) error {
	return sm.SetSession(ctx, phone, models.UpdateFromState(models.FlowState{Name: flow}))
}

// ClearFlow ends the active flow and drops its data.
func (sm *SessionManager) ClearFlow(ctx context.Context, phone string) error {
	return sm.SetSession(ctx, phone, models.ClearedFlow())
}

// Delete removes the session for phone.
func (sm *SessionManager) Delete(ctx context.Context, phone string) error {
	if err := sm.store.DeleteSession(ctx, phone); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// IsInFlow reports whether phone has a live session with an active flow.
func (sm *SessionManager) IsInFlow(ctx context.Context, phone string) (bool, error) {
	session, err := sm.GetSession(ctx, phone)
	if err != nil {
		return false, err
	}
	return session.InFlow(), nil
}

// ExpiredSessions lists sessions past the TTL.
func (sm *SessionManager) ExpiredSessions(ctx context.Context) ([]*models.Session, error) {
	return sm.store.ExpiredSessions(ctx, sm.now().Add(-sm.ttl))
}

// DeleteExpired removes every session past the TTL.
func (sm *SessionManager) DeleteExpired(ctx context.Context) (int64, error) {
	return sm.store.DeleteExpiredSessions(ctx, sm.now().Add(-sm.ttl))
}
