package runlock

import (
	"context"

	"github.com/loyaltylabs/loyalsync/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the run lock when redis is configured. With no redis
// address the lock is absent and consumers fall back to in-process locking
// only (fx optional dependency).
var Module = fx.Module("runlock",
	fx.Provide(NewClient),
	fx.Provide(NewLock),
)

func NewClient(cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func NewLock(cfg config.Config, client *redis.Client) *Lock {
	if client == nil {
		return nil
	}
	return New(client, cfg.Sync.RunLockTTL)
}
