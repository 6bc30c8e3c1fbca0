package handlers

import (
	"errors"
	"net/http"

	"pingme/internal/models"
	"pingme/internal/presence"
	"pingme/internal/services"
	"pingme/internal/store"
	"pingme/internal/uploads"

	"github.com/gofiber/fiber/v2"
)

// GetRosterHandler returns every other user with the advisory
// last-message preview, decorated with live presence.
func GetRosterHandler(messageService *services.MessageService, reg *presence.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		entries, err := messageService.Roster(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch users"})
		}
		for i := range entries {
			entries[i].Online = reg.IsOnline(entries[i].ID)
		}
		return c.JSON(entries)
	}
}

// GetMessagesHandler returns the conversation with the peer in the
// path, ordered oldest first.
func GetMessagesHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		peerID := c.Params("id")
		if peerID == "" || peerID == userID {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid peer id"})
		}

		messages, err := messageService.History(c.Context(), userID, peerID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
		}
		return c.JSON(messages)
	}
}

// SendMessageHandler persists a message to the peer in the path and
// returns the canonical copy. Instant delivery is the client's channel
// emit; this path only guarantees durability.
func SendMessageHandler(messageService *services.MessageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		peerID := c.Params("id")
		if peerID == "" || peerID == userID {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid peer id"})
		}

		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		msg, err := messageService.Send(c.Context(), userID, peerID, req)
		switch {
		case errors.Is(err, store.ErrEmptyMessage):
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, uploads.ErrUpload):
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
		case err != nil:
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send message"})
		}
		return c.Status(http.StatusCreated).JSON(msg)
	}
}
