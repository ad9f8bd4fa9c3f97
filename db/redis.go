package db

import (
	"context"
	"fmt"
	"time"

	"MixGrid/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the shared redis client.
var RedisClient *redis.Client

// ConnectRedis initializes the redis connection.
func ConnectRedis(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// CloseRedis closes the redis connection.
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// PingRedis verifies connectivity and round-trips one key, used by the
// `redis` subcommand as a health check.
func PingRedis() error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx := context.Background()
	if err := RedisClient.Set(ctx, "mixgrid:healthcheck", "ok", time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set redis key: %w", err)
	}
	val, err := RedisClient.Get(ctx, "mixgrid:healthcheck").Result()
	if err != nil {
		return fmt.Errorf("failed to get redis key: %w", err)
	}
	if val != "ok" {
		return fmt.Errorf("unexpected value from redis: got %s", val)
	}
	_, err = RedisClient.Del(ctx, "mixgrid:healthcheck").Result()
	return err
}
