package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
)

// ErrorHandler maps handler errors to JSON responses. Internal error text is
// only returned to the client in debug mode; it is always logged.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code < fiber.StatusInternalServerError {
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		logger.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")

		body := fiber.Map{"error": "Internal server error"}
		if debug {
			body["detail"] = err.Error()
		}
		return c.Status(code).JSON(body)
	}
}
