package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// HandlerFunc produces the reply for one event. An empty reply means the
// handler had nothing to say and the caller falls back to its default text.
type HandlerFunc func(ctx context.Context, ev models.InboundEvent, user *models.User) (string, error)

// Handler is one entry of the dispatch table.
type Handler struct {
	// ID is the action identifier used by interactive replies and menus.
	ID string
	// Keywords match when one of them appears as whole words in the
	// normalized input.
	Keywords []string
	// Match overrides Keywords when set.
	Match func(normalized string) bool
	// Handle computes the reply. Ignored when Flow is set.
	Handle HandlerFunc
	// Flow, when set, starts the named flow instead of replying directly.
	Flow string
}

// StartsFlow reports whether the handler hands over to a flow.
func (h Handler) StartsFlow() bool { return h.Flow != "" }

func (h Handler) matches(normalized string) bool {
	if h.Match != nil {
		return h.Match(normalized)
	}
	padded := " " + normalized + " "
	for _, kw := range h.Keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

// Registry holds handlers in priority order. The first matching handler wins.
type Registry struct {
	handlers []Handler
	byID     map[string]int
	media    map[models.MediaKind]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]int),
		media: make(map[models.MediaKind]HandlerFunc),
	}
}

// Register appends h at the lowest priority.
func (r *Registry) Register(h Handler) error {
	if h.ID == "" {
		return fmt.Errorf("handler id is required")
	}
	if _, exists := r.byID[h.ID]; exists {
		return fmt.Errorf("handler %q already registered", h.ID)
	}
	if h.Handle == nil && h.Flow == "" {
		return fmt.Errorf("handler %q needs Handle or Flow", h.ID)
	}
	keywords := make([]string, 0, len(h.Keywords))
	for _, kw := range h.Keywords {
		if kw = utils.NormalizeLabel(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	h.Keywords = keywords
	r.byID[h.ID] = len(r.handlers)
	r.handlers = append(r.handlers, h)
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(handlers ...Handler) *Registry {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// RegisterMedia sets the handler for one media kind.
func (r *Registry) RegisterMedia(kind models.MediaKind, fn HandlerFunc) {
	r.media[kind] = fn
}

// ByID returns the handler registered under id.
func (r *Registry) ByID(id string) (Handler, bool) {
	i, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Handler{}, false
	}
	return r.handlers[i], true
}

// Match scans the handlers in order and returns the first one recognizing text.
func (r *Registry) Match(text string) (Handler, bool) {
	normalized := utils.NormalizeLabel(text)
	if normalized == "" {
		return Handler{}, false
	}
	for _, h := range r.handlers {
		if h.matches(normalized) {
			return h, true
		}
	}
	return Handler{}, false
}

// Lookup treats input as an action id first and falls back to Match.
func (r *Registry) Lookup(input string) (Handler, bool) {
	if h, ok := r.ByID(input); ok {
		return h, true
	}
	return r.Match(input)
}

// Media returns the handler for a media kind.
func (r *Registry) Media(kind models.MediaKind) (HandlerFunc, bool) {
	fn, ok := r.media[kind]
	return fn, ok
}

// IDs lists handler ids in priority order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		ids[i] = h.ID
	}
	return ids
}
