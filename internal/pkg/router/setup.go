package router

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/app/controllers"
	apiv1 "github.com/ManuelReschke/ClipPass/internal/api/v1"
	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
	"github.com/ManuelReschke/ClipPass/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the routers mount.
type Deps struct {
	API   apiv1.ServerInterface
	Authn middleware.Authenticator

	// Admin is nil when the admin surface is disabled.
	Admin       *controllers.AdminController
	AdminConfig config.AdminConfig

	RateLimit config.RateLimitConfig
	// LimiterStorage is nil for in-memory counters.
	LimiterStorage fiber.Storage

	Health map[string]HealthCheck
	Log    zerolog.Logger
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
