package router

import (
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
	deps Deps
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
	if h.deps.Admin != nil && h.deps.AdminConfig.AdminEnabled() {
		h.registerAdminRoutes(app)
	} else {
		h.deps.Log.Info().Msg("admin surface disabled")
	}
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}
