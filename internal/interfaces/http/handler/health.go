package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/infrastructure/ledger"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
)

const healthPingTimeout = 2 * time.Second

var errNoDatabase = errors.New("database not configured")

// DatabasePinger checks the database connection
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// LedgerStater reports the ledger session state without connecting
type LedgerStater interface {
	State() ledger.State
}

// HealthHandler reports service health
type HealthHandler struct {
	BaseHandler
	db        DatabasePinger
	ledger    LedgerStater
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabasePinger, ledger LedgerStater, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		ledger:    ledger,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the health report
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Ledger    string `json:"ledger"`
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// Health answers 503 when the database is unreachable. The ledger state is reported
// but never fails the check: writes degrade to partial success without it.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Ledger:    string(ledger.StateDisabled),
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.ledger != nil {
		resp.Ledger = string(h.ledger.State())
	}

	status := http.StatusOK
	if err := h.pingDB(c.Request.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusOK && resp.Ledger != string(ledger.StateConnected) {
		resp.Status = "degraded"
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.db.PingContext(ctx)
}
