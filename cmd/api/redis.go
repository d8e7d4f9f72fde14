package main

import (
	"context"

	"github.com/angelmondragon/fastmart-backend/api/routes"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/redis"
)

// connectRedis returns nil when redis cannot be reached at startup. The api
// then serves from Postgres alone until it is restarted with redis available.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) *redis.Client {
	client, err := redis.New(ctx, cfg, logg)
	if err != nil {
		logg.WarnErr(ctx, "redis unavailable, starting in degraded mode", err)
		return nil
	}
	return client
}

// The helpers below keep a nil *redis.Client from turning into a non-nil
// interface, which the middleware and listing cache would otherwise call.

func listingStore(enabled bool, client *redis.Client) redis.Cache {
	if !enabled || client == nil {
		return nil
	}
	return client
}

func httpStore(client *redis.Client) routes.RedisStore {
	if client == nil {
		return nil
	}
	return client
}

func closeRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
