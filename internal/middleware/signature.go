package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/webhook"
)

// ValidateWebhookSignature rejects requests whose X-Hub-Signature-256 header
// does not match an HMAC-SHA256 of the request body as received, before any
// Content-Encoding is undone.
func ValidateWebhookSignature(appSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := webhook.VerifySignature(c.BodyRaw(), c.Get(webhook.SignatureHeader), appSecret)
		if err == nil {
			return c.Next()
		}

		logger.Warn().Err(err).Str("ip", c.IP()).Str("path", c.Path()).Msg("Rejected webhook signature")

		msg := "Invalid signature"
		if errors.Is(err, webhook.ErrMissingSignature) {
			msg = "Missing signature"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": msg,
		})
	}
}
