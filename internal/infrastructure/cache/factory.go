package cache

import (
	"fmt"

	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewResponseStore picks the store matching the lock driver: replicas that share
// item locks through Redis also share idempotency keys there.
func NewResponseStore(cfg config.LockConfig, client redis.UniversalClient, logger *zap.Logger) (ResponseStore, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory idempotency store")
		return NewInMemoryResponseStore(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis idempotency store requires a redis client")
		}
		logger.Info("Using Redis idempotency store")
		return NewRedisResponseStore(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}
