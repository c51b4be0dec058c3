package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/services"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/storage"
	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/utils"
)

// AdminHandler handles admin operations
type AdminHandler struct {
	users    storage.UserStore
	sessions *services.SessionManager
	menus    *services.MenuMappingCache
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(users storage.UserStore, sessions *services.SessionManager, menus *services.MenuMappingCache) *AdminHandler {
	return &AdminHandler{
		users:    users,
		sessions: sessions,
		menus:    menus,
	}
}

// GetUser returns a user with their live session, if any.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	phone := utils.NormalizePhone(c.Params("phone"))

	user, err := h.users.GetUser(c.UserContext(), phone)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		return err
	}

	session, err := h.sessions.GetSession(c.UserContext(), phone)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"session": session,
	})
}

// ResetSession ends the user's flow and forgets their last menu.
func (h *AdminHandler) ResetSession(c *fiber.Ctx) error {
	phone := utils.NormalizePhone(c.Params("phone"))

	if err := h.sessions.ClearFlow(c.UserContext(), phone); err != nil {
		return err
	}
	if _, err := h.menus.Clear(c.UserContext(), phone); err != nil {
		logger.Warn().Err(err).Str("phone", phone).Msg("Failed to clear menu mapping")
	}

	logger.Info().Str("phone", phone).Msg("Admin reset session")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Session reset",
	})
}

// DeleteUser removes a user with their session and menu mapping.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	phone := utils.NormalizePhone(c.Params("phone"))

	err := h.users.DeleteUser(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		return err
	}

	if err := h.sessions.Delete(ctx, phone); err != nil {
		logger.Warn().Err(err).Str("phone", phone).Msg("Failed to delete session of removed user")
	}
	if _, err := h.menus.Clear(ctx, phone); err != nil {
		logger.Warn().Err(err).Str("phone", phone).Msg("Failed to clear menu mapping")
	}

	logger.Info().Str("phone", phone).Msg("Admin deleted user")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted",
	})
}
