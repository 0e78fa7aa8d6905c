package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still carries our token,
// so an expired lock re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const releaseTimeout = 5 * time.Second

// RedisLocker is a distributed per-key lock built on SET NX PX.
// The TTL must outlast the longest critical section; config validation
// ties it to the ledger submit timeout.
type RedisLocker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	retryInterval time.Duration
	keyPrefix     string
	logger        *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a locker over an existing client
func NewRedisLocker(client redis.UniversalClient, cfg config.LockConfig, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           cfg.TTL,
		retryInterval: cfg.RetryInterval,
		keyPrefix:     cfg.KeyPrefix,
		logger:        logger,
	}
}

// Lock polls until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", redisKey, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	// release even if the request context is already gone
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	switch {
	case err != nil && !errors.Is(err, redis.Nil):
		l.logger.Error("Failed to release item lock", zap.String("key", redisKey), zap.Error(err))
	case n == 0:
		l.logger.Warn("Item lock expired before release", zap.String("key", redisKey), zap.Duration("ttl", l.ttl))
	}
}

// Locker is the common shape of both lock implementations
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// New selects the lock implementation named by cfg.Driver
func New(cfg config.LockConfig, client redis.UniversalClient, logger *zap.Logger) (Locker, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewKeyedMutex(), nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis lock driver requires a redis client")
		}
		return NewRedisLocker(client, cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
}

var (
	_ Locker = (*KeyedMutex)(nil)
	_ Locker = (*RedisLocker)(nil)
)
