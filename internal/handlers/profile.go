package handlers

import (
	"errors"
	"net/http"

	"pingme/internal/services"
	"pingme/internal/store"
	"pingme/internal/uploads"

	"github.com/gofiber/fiber/v2"
)

// CheckAuthHandler returns the authenticated user's profile.
func CheckAuthHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		user, err := userService.Profile(c.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "user not found"})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(user)
	}
}

// UpdateProfileHandler replaces the authenticated user's avatar. The
// body carries the image as a base64 data URI.
func UpdateProfileHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			Avatar string `json:"avatar"`
		}
		if err := c.BodyParser(&body); err != nil || body.Avatar == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "avatar image is required"})
		}

		user, err := userService.UpdateAvatar(c.Context(), userID, body.Avatar)
		if err != nil {
			if errors.Is(err, uploads.ErrUpload) {
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(user)
	}
}
