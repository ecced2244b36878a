package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/pkg/config"
	"github.com/noah-isme/smallgroups-admin-api/pkg/database"
)

// NewRedis returns a configured Redis client, retrying the first ping until
// cfg.ConnectTimeout elapses.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := database.WaitFor(ctx, cfg.ConnectTimeout, ping, func(err error, next time.Duration) {
		logger.Warn("redis not ready, retrying", zap.String("addr", addr), zap.Error(err), zap.Duration("next_retry_in", next))
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return client, nil
}
