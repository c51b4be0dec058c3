package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Storage  string
	Provider string

	store Pinger
	cache Pinger
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(version, storageType, provider string, store, cache Pinger) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Storage:  storageType,
		Provider: provider,
		store:    store,
		cache:    cache,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := fiber.StatusOK
	deps := fiber.Map{}

	deps["storage"] = h.Storage
	if err := h.store.Ping(ctx); err != nil {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
		deps["storage_ok"] = false
	} else {
		deps["storage_ok"] = true
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
			deps["redis_ok"] = false
		} else {
			deps["redis_ok"] = true
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "AstroBot WhatsApp",
		"version":  h.Version,
		"provider": h.Provider,
		"services": deps,
	})
}
