package lock

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRedisLocker(t *testing.T, logger *zap.Logger) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, config.LockConfig{
		TTL:           time.Second,
		RetryInterval: 5 * time.Millisecond,
		KeyPrefix:     "herbtrace:lock:item:",
	}, logger)
	return l, mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t, zap.NewNop())

	unlock, err := l.Lock(context.Background(), "ASH1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("herbtrace:lock:item:ASH1"))
	assert.Equal(t, time.Second, mr.TTL("herbtrace:lock:item:ASH1"))

	unlock()
	assert.False(t, mr.Exists("herbtrace:lock:item:ASH1"))
	unlock()
}

func TestRedisLocker_ContendedWaitsForRelease(t *testing.T) {
	l, _ := newRedisLocker(t, zap.NewNop())

	unlock, err := l.Lock(context.Background(), "ASH1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "ASH1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan Unlock, 1)
	go func() {
		next, err := l.Lock(context.Background(), "ASH1")
		if err == nil {
			acquired <- next
		}
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()

	select {
	case next := <-acquired:
		next()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	l, mr := newRedisLocker(t, zap.New(core))

	first, err := l.Lock(context.Background(), "ASH1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	second, err := l.Lock(context.Background(), "ASH1")
	require.NoError(t, err)
	owner, err := mr.Get("herbtrace:lock:item:ASH1")
	require.NoError(t, err)

	first()
	current, err := mr.Get("herbtrace:lock:item:ASH1")
	require.NoError(t, err)
	assert.Equal(t, owner, current)
	assert.Equal(t, 1, recorded.FilterMessage("Item lock expired before release").Len())

	second()
	assert.False(t, mr.Exists("herbtrace:lock:item:ASH1"))
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l, err := New(config.LockConfig{Driver: "memory"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &KeyedMutex{}, l)

	l, err = New(config.LockConfig{Driver: "redis", TTL: time.Second, RetryInterval: time.Millisecond}, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisLocker{}, l)

	_, err = New(config.LockConfig{Driver: "redis"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.LockConfig{Driver: "etcd"}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	host := mr.Host()

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
