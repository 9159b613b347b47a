package cache

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	fiberredis "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
)

// limiterDatabase keeps rate-limit counters apart from the gate cache on DB 0.
const limiterDatabase = 1

// NewLimiterStorage returns Redis-backed storage for the rate limiter.
// The storage driver panics when the server is unreachable; that is turned
// into an error so callers can fall back to in-memory counters.
func NewLimiterStorage(cfg config.CacheConfig) (storage fiber.Storage, err error) {
	defer func() {
		if r := recover(); r != nil {
			storage, err = nil, fmt.Errorf("limiter storage: %v", r)
		}
	}()
	return fiberredis.New(fiberredis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	}), nil
}
