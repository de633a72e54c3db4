package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BootRedis returns nil when REDIS_ADDR is unset; the settings cache is optional.
func BootRedis(ctx context.Context) (*redis.Client, error) {
	addr := Conf().GetString("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: Conf().GetString("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	GetLogrusInstance().Info("Redis initialized")
	return rdb, nil
}
