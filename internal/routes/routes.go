package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/handlers"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/middleware"
)

// Handlers bundles the HTTP handlers mounted by SetupRoutes.
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Health   *handlers.HealthHandler
	// Admin is optional.
	Admin *handlers.AdminHandler
}

// Options controls route protection.
type Options struct {
	Version string
	// AppSecret signs webhook bodies. Empty disables signature validation.
	AppSecret  string
	AdminToken string
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "AstroBot WhatsApp webhook",
			"version": opts.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"webhook": "/webhook/whatsapp",
			},
		})
	})

	app.Get("/health", h.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	webhooks.Get("/whatsapp", h.WhatsApp.Verify)

	if opts.AppSecret == "" {
		logger.Warn().Msg("⚠️  WhatsApp webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", h.WhatsApp.Receive)
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateWebhookSignature(opts.AppSecret), h.WhatsApp.Receive)
	}

	// ========== ADMIN ROUTES ==========
	if h.Admin == nil || opts.AdminToken == "" {
		return
	}
	admin := app.Group("/admin", middleware.RequireAdminToken(opts.AdminToken))
	admin.Get("/users/:phone", h.Admin.GetUser)
	admin.Post("/users/:phone/reset", h.Admin.ResetSession)
	admin.Delete("/users/:phone", h.Admin.DeleteUser)
}
