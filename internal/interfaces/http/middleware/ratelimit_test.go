package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(requests, window)
	t.Cleanup(rl.Close)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("a")
		require.True(t, ok, "request %d", i)
	}
	ok, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.InDelta(t, float64(20*time.Second), float64(retry), float64(time.Millisecond))

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	*now = now.Add(21 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "one token refilled")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Second)
	rl.Allow("a")
	*now = now.Add(5 * time.Second)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Minute)

	router := gin.New()
	router.POST("/trace", RateLimit(rl, ClientIPKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/trace", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(10*time.Millisecond))
	assert.Equal(t, 30, retryAfterSeconds(30*time.Second+time.Nanosecond))
}

func TestActorOrIPKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "198.51.100.4:1234"
	assert.Equal(t, "ip:198.51.100.4", ActorOrIPKey(c))

	c.Set(ActorKey, shared.Actor{ID: "lab-7", Role: shared.RoleLab})
	assert.Equal(t, "actor:lab-7", ActorOrIPKey(c))
}
