package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
	"github.com/herbtrace/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	collector = shared.Actor{ID: "col-1", Role: shared.RoleCollector}
	admin     = shared.Actor{ID: "adm-1", Role: shared.RoleAdmin}
	testNow   = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
)

// newTestRouter installs a fixed actor the way JWTAuth would
func newTestRouter(actor *shared.Actor) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ActorKey, *actor)
		}
		c.Next()
	})
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, map[string]any) {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func sampleBatch() *batch.HerbBatch {
	return &batch.HerbBatch{
		BaseAggregateRoot: shared.BaseAggregateRoot{Version: 1, CreatedAt: testNow, UpdatedAt: testNow},
		ID:                "ASH1773478800000K3P9",
		Species:           "Ashwagandha",
		CollectorID:       "col-1",
		Status:            batch.BatchStatusCollected,
		Metadata:          batch.Metadata{"quality": 4, "location": map[string]any{"latitude": 26.9, "longitude": 75.8}},
	}
}

func TestGetRequestID(t *testing.T) {
	t.Run("from middleware", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set("request_id", "ctx-id")
		c.Request.Header.Set(middleware.RequestIDKey, "header-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})
	t.Run("header fallback", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(middleware.RequestIDKey, "header-id")
		assert.Equal(t, "header-id", getRequestID(c))
	})
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", shared.NewValidationError("quality must be between 1 and 5"), http.StatusBadRequest, dto.ErrCodeValidation, "quality must be between 1 and 5"},
		{"not found", shared.NewNotFoundError("item X not found"), http.StatusNotFound, dto.ErrCodeNotFound, "item X not found"},
		{"invalid transition", shared.NewInvalidTransitionError("cannot test"), http.StatusConflict, dto.ErrCodeInvalidTransition, "cannot test"},
		{"concurrency", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict, ""},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, dto.ErrCodeForbidden, ""},
		{"persistence", shared.NewPersistenceError("commit failed", errors.New("disk full")), http.StatusInternalServerError, dto.ErrCodePersistence, "commit failed"},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.NewNotFoundError("gone")), http.StatusNotFound, dto.ErrCodeNotFound, "gone"},
		{"plain error hides detail", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set("request_id", "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp, _ := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error.Message)
			}
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	(&BaseHandler{}).HandleError(c, nil)
	assert.False(t, c.Writer.Written())
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	(&BaseHandler{}).SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)

	resp, _ := decode(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
