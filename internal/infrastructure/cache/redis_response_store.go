package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "herbtrace:idempotency:"
	pendingMarker    = "pending"
)

// RedisResponseStore implements ResponseStore using Redis.
// Suitable when several instances sit behind one load balancer.
type RedisResponseStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisResponseStore creates a store with an existing Redis client
func NewRedisResponseStore(client redis.UniversalClient, keyPrefix string) *RedisResponseStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisResponseStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim uses SETNX so only one request wins the key
func (s *RedisResponseStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Store overwrites the pending marker with the response
func (s *RedisResponseStore) Store(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode stored response: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// Load returns the stored response for key
func (s *RedisResponseStore) Load(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stored response: %w", err)
	}
	if string(raw) == pendingMarker {
		return nil, ErrKeyInFlight
	}

	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &resp, nil
}

// Release deletes the key
func (s *RedisResponseStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared and closed by its owner
func (s *RedisResponseStore) Close() error {
	return nil
}

var _ ResponseStore = (*RedisResponseStore)(nil)
