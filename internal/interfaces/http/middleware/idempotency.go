package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/infrastructure/cache"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader is the client supplied key for a retryable write
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from the store
	IdempotentReplayedHeader = "Idempotent-Replayed"
	// MaxIdempotencyKeyLength bounds the key to keep store entries small
	MaxIdempotencyKeyLength = 255

	defaultIdempotencyStoreTimeout = 5 * time.Second
)

// IdempotencyConfig holds the lifetimes of idempotency store entries.
type IdempotencyConfig struct {
	TTL          time.Duration // how long a finished response is replayed
	ClaimTTL     time.Duration // how long an unfinished request holds its key
	StoreTimeout time.Duration // bound on the store write after the handler returns
}

// captureWriter tees the response body so it can be stored after the handler returns.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped by actor and route. Requests without the header pass through.
// Responses with status 500 and above release the key so the client can retry.
// Store failures are logged and the request proceeds unprotected.
// The outcome is written on a context detached from the request, so a client
// that disconnects after the handler committed still gets its replay.
func Idempotency(store cache.ResponseStore, cfg IdempotencyConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClaimTTL <= 0 || cfg.ClaimTTL > cfg.TTL {
		cfg.ClaimTTL = cfg.TTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultIdempotencyStoreTimeout
	}
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		storeKey := GetActor(c).ID + "|" + c.Request.Method + "|" + c.FullPath() + "|" + key

		claimed, err := store.Claim(ctx, storeKey, cfg.ClaimTTL)
		if err != nil {
			logger.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			replay(c, store, storeKey, logger)
			return
		}

		release := func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.StoreTimeout)
			defer cancel()
			if err := store.Release(rctx, storeKey); err != nil {
				logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
		defer func() {
			if r := recover(); r != nil {
				release()
				panic(r)
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}
		resp := cache.StoredResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.StoreTimeout)
		defer cancel()
		if err := store.Store(sctx, storeKey, resp, cfg.TTL); err != nil {
			logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, store cache.ResponseStore, key string, logger *zap.Logger) {
	resp, err := store.Load(c.Request.Context(), key)
	switch {
	case errors.Is(err, cache.ErrKeyInFlight):
		c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeIdempotencyInFlight, "A request with this Idempotency-Key is still being processed", GetRequestID(c)))
	case err != nil:
		logger.Warn("Idempotency store unavailable", zap.Error(err))
		c.Next()
	case resp == nil:
		// claim expired between Claim and Load
		c.Next()
	default:
		c.Header(IdempotentReplayedHeader, "true")
		c.Data(resp.Status, resp.ContentType, resp.Body)
		c.Abort()
	}
}
