package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a create loses a race on a unique key.
	ErrDuplicate = errors.New("record already exists")
)

// UserStore persists users keyed by phone number.
type UserStore interface {
	GetUser(ctx context.Context, phone string) (*models.User, error)
	// CreateUser returns ErrDuplicate if the phone number already exists.
	CreateUser(ctx context.Context, phone string) (*models.User, error)
	UpdateUser(ctx context.Context, phone string, update models.UserUpdate) (*models.User, error)
	// DeleteUser is administrative and never called by the router.
	DeleteUser(ctx context.Context, phone string) error
}

// SessionStore persists conversation sessions keyed by phone number.
// Expiry is decided by the caller; the store returns whatever it holds.
type SessionStore interface {
	GetSession(ctx context.Context, phone string) (*models.Session, error)
	// SetSession upserts: merges update into the existing session or creates
	// one, and always refreshes LastActivity.
	SetSession(ctx context.Context, phone string, update models.SessionUpdate) error
	DeleteSession(ctx context.Context, phone string) error
	// ExpiredSessions lists sessions idle since before cutoff.
	ExpiredSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
	// DeleteExpiredSessions removes sessions idle since before cutoff.
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventStore records processed webhook event ids.
type EventStore interface {
	// MarkEvent records id and reports whether it was seen for the first time.
	MarkEvent(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// DeleteExpiredEvents removes ids whose TTL ended at or before now.
	DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the bot persists.
type Store interface {
	UserStore
	SessionStore
	EventStore
	Ping(ctx context.Context) error
}
