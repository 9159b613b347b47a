package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	auth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.deps.AdminConfig.User: h.deps.AdminConfig.Password,
		},
		Realm: "ClipPass Admin",
	})

	adminGroup := app.Group("/admin", auth)
	adminGroup.Get("/", h.deps.Admin.HandleAdminDashboard)
	adminGroup.Get("/:name", h.deps.Admin.HandleAdminList)
	adminGroup.Post("/:name/delete/:id", h.deps.Admin.HandleAdminDelete)
}
