package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

// RequireAuth rejects anonymous API requests with a JSON 401.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Authentication credentials were not provided.",
		})
	}
	return c.Next()
}
