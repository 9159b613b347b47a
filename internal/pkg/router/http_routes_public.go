package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthTimeout = 2 * time.Second

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", h.handleHealth)
}

// handleHealth runs every registered check. Any failure turns the response
// into a 503.
func (h HttpRouter) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := "ok"
	checks := make(fiber.Map, len(h.deps.Health))
	for name, check := range h.deps.Health {
		if err := check(ctx); err != nil {
			h.deps.Log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = err.Error()
			status = "unavailable"
			continue
		}
		checks[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "checks": checks})
}
