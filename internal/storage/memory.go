package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and local runs.
type MemoryStore struct {
	users    map[string]*models.User
	sessions map[string]*models.Session
	events   map[string]time.Time

	userMu    sync.RWMutex
	sessionMu sync.RWMutex
	eventMu   sync.Mutex

	userCounter    uint
	sessionCounter uint

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		sessions: make(map[string]*models.Session),
		events:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// User operations

func (m *MemoryStore) GetUser(ctx context.Context, phone string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	u, ok := m.users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, phone string) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if _, ok := m.users[phone]; ok {
		return nil, ErrDuplicate
	}

	m.userCounter++
	now := m.now()
	u := &models.User{
		PhoneNumber:       phone,
		PreferredLanguage: "en",
		LastInteraction:   now,
	}
	u.ID = m.userCounter
	u.CreatedAt = now
	u.UpdatedAt = now

	m.users[phone] = u
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, phone string, update models.UserUpdate) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	u, ok := m.users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(u)
	u.UpdatedAt = m.now()

	cp := *u
	return &cp, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, phone string) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if _, ok := m.users[phone]; !ok {
		return ErrNotFound
	}
	delete(m.users, phone)
	return nil
}

// Session operations

func (m *MemoryStore) GetSession(ctx context.Context, phone string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	s, ok := m.sessions[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SetSession(ctx context.Context, phone string, update models.SessionUpdate) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	now := m.now()
	s, ok := m.sessions[phone]
	if !ok {
		m.sessionCounter++
		s = &models.Session{PhoneNumber: phone}
		s.ID = m.sessionCounter
		s.CreatedAt = now
		m.sessions[phone] = s
	}
	update.Apply(s)
	s.LastActivity = now
	s.UpdatedAt = now
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, phone string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	delete(m.sessions, phone)
	return nil
}

func (m *MemoryStore) ExpiredSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var expired []*models.Session
	for _, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			cp := *s
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var n int64
	for phone, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, phone)
			n++
		}
	}
	return n, nil
}

// Event operations

func (m *MemoryStore) MarkEvent(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	now := m.now()
	if exp, ok := m.events[id]; ok && now.Before(exp) {
		return false, nil
	}
	m.events[id] = now.Add(ttl)

	// Opportunistic pruning keeps the map bounded by the TTL window.
	if len(m.events)%256 == 0 {
		for k, exp := range m.events {
			if !now.Before(exp) {
				delete(m.events, k)
			}
		}
	}
	return true, nil
}

func (m *MemoryStore) DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	var n int64
	for id, exp := range m.events {
		if !now.Before(exp) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}
