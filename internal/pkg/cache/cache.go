package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/internal/pkg/config"
)

const pingTimeout = 2 * time.Second

// SetupCache connects to the Redis/Dragonfly server. A failed ping is only
// logged: everything stored here is derived data and callers fall back to
// the database.
func SetupCache(cfg config.CacheConfig, log zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr()).Msg("could not connect to cache")
	} else {
		log.Info().Str("addr", cfg.Addr()).Str("reply", pong).Msg("connected to cache")
	}
	return client
}
