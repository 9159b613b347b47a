package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/controllers"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/app/repository/memory"
	apiv1 "github.com/ManuelReschke/ClipPass/internal/api/v1"
	"github.com/ManuelReschke/ClipPass/internal/pkg/accessgate"
	"github.com/ManuelReschke/ClipPass/internal/pkg/activity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/admin"
	"github.com/ManuelReschke/ClipPass/internal/pkg/cache"
	"github.com/ManuelReschke/ClipPass/internal/pkg/catalog"
	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
	"github.com/ManuelReschke/ClipPass/internal/pkg/database"
	"github.com/ManuelReschke/ClipPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/ClipPass/internal/pkg/env"
	"github.com/ManuelReschke/ClipPass/internal/pkg/identity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/ledger"
	"github.com/ManuelReschke/ClipPass/internal/pkg/logging"
	"github.com/ManuelReschke/ClipPass/internal/pkg/mediaurl"
	"github.com/ManuelReschke/ClipPass/internal/pkg/router"
	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile, envErr := env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log)
	if envErr != nil {
		log.Fatal().Err(envErr).Str("file", envFile).Msg("failed to load env file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	app, cleanup, err := NewApplication(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	defer cleanup()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.App.Listen()).Str("store", cfg.App.Store).Msg("listening")
	if err := app.Listen(cfg.App.Listen()); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

// NewApplication wires configuration, storage and services into a fiber app.
// The returned cleanup closes the database and cache connections.
func NewApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*fiber.App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	health := map[string]router.HealthCheck{}

	var (
		db      *gorm.DB
		factory *repository.Factory
	)
	switch cfg.App.Store {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		factory = repository.NewFactoryWith(memory.New())
	default:
		var err error
		db, err = database.SetupDatabase(cfg.DB, logging.Component(log, "database"))
		if err != nil {
			return nil, cleanup, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		health["database"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
		factory = repository.NewFactory(db)
	}
	repos := factory.GetRepositories()

	var (
		publishers     *cache.PublisherSet
		limiterStorage fiber.Storage
	)
	if cfg.Cache.Enabled {
		client := cache.SetupCache(cfg.Cache, logging.Component(log, "cache"))
		closers = append(closers, func() { _ = client.Close() })
		health["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		publishers = cache.NewPublisherSet(client, cfg.Gate.CacheTTL, logging.Component(log, "cache"))
		limiterStorage = newLimiterStorage(ctx, cfg.Cache, client, log)
	}

	resolver, err := mediaurl.New(ctx, cfg.S3)
	if err != nil {
		return nil, cleanup, err
	}

	l := ledger.New(logging.Component(log, "ledger"))

	var engineOpts []entitlements.Option
	gateOpts := []accessgate.Option{accessgate.WithResolver(resolver)}
	if publishers != nil && cfg.Gate.CacheTTL > 0 {
		engineOpts = append(engineOpts, entitlements.WithInvalidator(publishers))
		gateOpts = append(gateOpts, accessgate.WithCache(publishers))
	}
	engine := entitlements.NewEngine(repos, l, logging.Component(log, "entitlements"), engineOpts...)
	gate := accessgate.New(engine, repos.Video, repos.Activity, logging.Component(log, "gate"), gateOpts...)
	ident := identity.NewService(repos, l, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, logging.Component(log, "identity"),
		identity.WithInvalidator(gate))

	server := apiv1.NewAPIServer(apiv1.Services{
		Identity:     ident,
		Entitlements: engine,
		Gate:         gate,
		Activity:     activity.NewService(repos.Activity, gate, logging.Component(log, "activity")),
		Catalog: catalog.NewService(repos.License, repos.Video, logging.Component(log, "catalog"),
			catalog.WithBuyerInvalidation(repos.Entitlement, gate)),
	}, logging.Component(log, "api"))

	var adminController *controllers.AdminController
	if db != nil {
		registry, err := admin.NewRegistry(admin.DefaultBindings()...)
		if err != nil {
			return nil, cleanup, err
		}
		adminController = controllers.NewAdminController(registry, admin.NewGormSource(db), logging.Component(log, "admin"))
	}

	basePath := findBasePath(cfg.App.BasePath)

	app := fiber.New(fiber.Config{
		ErrorHandler: apiv1.ErrorHandler(logging.Component(log, "http")),
		BodyLimit:    1 << 20,
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: usercontext.KeyRequestID,
	}), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// fiber metrics
	if cfg.Admin.AdminEnabled() {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{cfg.Admin.User: cfg.Admin.Password},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		API:            server,
		Authn:          ident,
		Admin:          adminController,
		AdminConfig:    cfg.Admin,
		RateLimit:      cfg.RateLimit,
		LimiterStorage: limiterStorage,
		Health:         health,
		Log:            logging.Component(log, "router"),
	})

	return app, cleanup, nil
}

// newLimiterStorage only tries Redis when the cache answered a ping.
func newLimiterStorage(ctx context.Context, cfg config.CacheConfig, client *redis.Client, log zerolog.Logger) fiber.Storage {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("rate limiter falls back to in-memory counters")
		return nil
	}
	storage, err := cache.NewLimiterStorage(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter falls back to in-memory counters")
		return nil
	}
	return storage
}

// findBasePath returns the first candidate directory holding the public assets.
func findBasePath(configured string) string {
	candidates := []string{
		configured + "/",
		"./",
		"../../", // from cmd/clippass to project root
	}
	for _, path := range candidates {
		if _, err := os.Stat(path + "public"); err == nil {
			return path
		}
	}
	return "./"
}
