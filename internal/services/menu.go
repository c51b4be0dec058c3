package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// MenuMapping maps the choices of the last numbered menu shown to a user
// back to action ids. Index keys are 1-based and contiguous; labels are
// normalized and kept in display order.
type MenuMapping struct {
	Indices   map[string]string `json:"indices"`
	Labels    []LabelMapping    `json:"labels"`
	CreatedAt time.Time         `json:"created_at"`
}

// LabelMapping is one normalized row label.
type LabelMapping struct {
	Label    string `json:"label"`
	ActionID string `json:"action_id"`
}

// Flatten returns index and label keys in a single map.
func (m *MenuMapping) Flatten() map[string]string {
	out := make(map[string]string, len(m.Indices)+len(m.Labels))
	for k, v := range m.Indices {
		out[k] = v
	}
	for _, l := range m.Labels {
		if _, ok := out[l.Label]; !ok {
			out[l.Label] = l.ActionID
		}
	}
	return out
}

// MenuBackend stores one mapping per phone number.
type MenuBackend interface {
	// Load returns nil without error when nothing is stored.
	Load(ctx context.Context, phone string) (*MenuMapping, error)
	// Store replaces the mapping for phone wholesale.
	Store(ctx context.Context, phone string, m *MenuMapping) error
	Delete(ctx context.Context, phone string) (bool, error)
}

// MenuMappingCache renders numbered fallback menus and resolves replies to them.
type MenuMappingCache struct {
	backend MenuBackend
	now     func() time.Time
}

// NewMenuMappingCache creates a cache on top of backend.
func NewMenuMappingCache(backend MenuBackend) *MenuMappingCache {
	return &MenuMappingCache{backend: backend, now: time.Now}
}

// Render builds the numbered text for menu and stores its mapping for phone,
// replacing any previous one.
func (c *MenuMappingCache) Render(ctx context.Context, menu models.MenuSpec, phone string) (string, error) {
	mapping := &MenuMapping{
		Indices:   make(map[string]string, menu.RowCount()),
		CreatedAt: c.now(),
	}

	var b strings.Builder
	if menu.Title != "" {
		fmt.Fprintf(&b, "*%s*\n", menu.Title)
	}
	if menu.Body != "" {
		b.WriteString(menu.Body)
		b.WriteString("\n")
	}

	index := 0
	for _, section := range menu.Sections {
		if len(section.Rows) == 0 {
			continue
		}
		b.WriteString("\n")
		if section.Title != "" {
			fmt.Fprintf(&b, "*%s*\n", section.Title)
		}
		for _, row := range section.Rows {
			index++
			key := strconv.Itoa(index)
			mapping.Indices[key] = row.ID
			if label := utils.NormalizeLabel(row.Title); label != "" {
				mapping.Labels = append(mapping.Labels, LabelMapping{Label: label, ActionID: row.ID})
			}

			fmt.Fprintf(&b, "%s. %s", key, row.Title)
			if row.Description != "" {
				fmt.Fprintf(&b, " - %s", row.Description)
			}
			b.WriteString("\n")
		}
	}

	if menu.Footer != "" {
		fmt.Fprintf(&b, "\n%s\n", menu.Footer)
	}
	b.WriteString("\nReply with a number or the option name.")

	if err := c.backend.Store(ctx, phone, mapping); err != nil {
		return "", fmt.Errorf("store menu mapping: %w", err)
	}
	return b.String(), nil
}

// Resolve maps a reply to an action id. It tries the display index, then the
// exact normalized label, then any input word contained in a label. Ties go
// to the label shown first.
func (c *MenuMappingCache) Resolve(ctx context.Context, phone, input string) (string, bool, error) {
	mapping, err := c.backend.Load(ctx, phone)
	if err != nil {
		return "", false, fmt.Errorf("load menu mapping: %w", err)
	}
	if mapping == nil {
		return "", false, nil
	}

	trimmed := strings.TrimSpace(input)
	if id, ok := mapping.Indices[trimmed]; ok {
		return id, true, nil
	}

	norm := utils.NormalizeLabel(trimmed)
	if norm == "" {
		return "", false, nil
	}
	for _, l := range mapping.Labels {
		if l.Label == norm {
			return l.ActionID, true, nil
		}
	}

	tokens := strings.Fields(norm)
	for _, l := range mapping.Labels {
		for _, tok := range tokens {
			if strings.Contains(l.Label, tok) {
				return l.ActionID, true, nil
			}
		}
	}
	return "", false, nil
}

// Clear forgets the mapping for phone and reports whether one existed.
func (c *MenuMappingCache) Clear(ctx context.Context, phone string) (bool, error) {
	return c.backend.Delete(ctx, phone)
}

// Mapping returns the stored mapping for phone, or nil.
func (c *MenuMappingCache) Mapping(ctx context.Context, phone string) (*MenuMapping, error) {
	return c.backend.Load(ctx, phone)
}

type menuEntry struct {
	mapping   *MenuMapping
	expiresAt time.Time
}

// MemoryMenuBackend keeps mappings in process. When more than maxUsers
// phones are tracked the whole map is dropped instead of evicting entries
// one by one. Mappings do not survive across instances.
type MemoryMenuBackend struct {
	mu       sync.Mutex
	entries  map[string]menuEntry
	maxUsers int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryMenuBackend creates an in-process backend. A zero ttl keeps
// mappings until they are replaced, cleared or shed.
func NewMemoryMenuBackend(maxUsers int, ttl time.Duration) *MemoryMenuBackend {
	return &MemoryMenuBackend{
		entries:  make(map[string]menuEntry),
		maxUsers: maxUsers,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (b *MemoryMenuBackend) Load(ctx context.Context, phone string) (*MenuMapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[phone]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		delete(b.entries, phone)
		return nil, nil
	}
	return e.mapping, nil
}

func (b *MemoryMenuBackend) Store(ctx context.Context, phone string, m *MenuMapping) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[phone]; !exists && b.maxUsers > 0 && len(b.entries) >= b.maxUsers {
		logger.Warn().Int("tracked_users", len(b.entries)).Int("max_users", b.maxUsers).
			Msg("Menu mapping cache full, clearing all entries")
		b.entries = make(map[string]menuEntry)
	}

	var expires time.Time
	if b.ttl > 0 {
		expires = b.now().Add(b.ttl)
	}
	b.entries[phone] = menuEntry{mapping: m, expiresAt: expires}
	return nil
}

func (b *MemoryMenuBackend) Delete(ctx context.Context, phone string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.entries[phone]
	delete(b.entries, phone)
	return ok, nil
}

// Len returns the number of tracked phones.
func (b *MemoryMenuBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
