package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList answers whether a verified token was revoked early
// (logout, forced sign-out). The identity service writes the entries.
type RevocationList interface {
	// IsRevoked reports whether the token with this JWT ID was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// IsUserInvalidated reports whether tokens issued at or before issuedAt were
	// invalidated for the user
	IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// RedisRevocationList reads revocation entries from the Redis keys shared with the
// identity service: <prefix>jti:<id> and <prefix>user:<id> holding a Unix timestamp.
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList creates a revocation reader over an existing client
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	return &RedisRevocationList{client: client, keyPrefix: keyPrefix}
}

func (r *RedisRevocationList) jtiKey(jti string) string {
	return r.keyPrefix + "jti:" + jti
}

func (r *RedisRevocationList) userKey(userID string) string {
	return r.keyPrefix + "user:" + userID
}

// IsRevoked checks if a token's JTI is listed
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

// IsUserInvalidated checks if a token was issued before the user's invalidation timestamp
func (r *RedisRevocationList) IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user token invalidation: %w", err)
	}

	invalidatedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse invalidation timestamp: %w", err)
	}
	return issuedAt.Unix() <= invalidatedAt, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)
