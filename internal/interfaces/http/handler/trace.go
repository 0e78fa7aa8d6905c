package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
)

// TraceResolver resolves and retires public trace codes
type TraceResolver interface {
	Lookup(ctx context.Context, code string) (*traceability.PublicTrace, error)
	Deactivate(ctx context.Context, actor shared.Actor, code string) (*batch.TraceBinding, error)
}

// TraceHandler handles the public trace endpoint and code administration
type TraceHandler struct {
	BaseHandler
	traces TraceResolver
}

// NewTraceHandler creates a new TraceHandler
func NewTraceHandler(traces TraceResolver) *TraceHandler {
	return &TraceHandler{traces: traces}
}

// TraceRequest carries a scanned trace code
type TraceRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// Lookup resolves a trace code for a consumer. Unknown and deactivated codes are 404.
//
// @ID           lookupTrace
// @Summary      Resolve a trace code
// @Description  Public consumer view of a batch. No authentication required.
// @Tags         trace
// @Accept       json
// @Produce      json
// @Param        request body TraceRequest true "Scanned code"
// @Success      200 {object} dto.Response{data=PublicTraceResponse}
// @Failure      404 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Router       /trace [post]
func (h *TraceHandler) Lookup(c *gin.Context) {
	var req TraceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	trace, err := h.traces.Lookup(c.Request.Context(), req.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPublicTraceResponse(trace))
}

// Deactivate retires a trace code
//
// @ID           deactivateTraceCode
// @Summary      Deactivate a trace code
// @Tags         trace
// @Produce      json
// @Param        code path string true "Trace code"
// @Success      200 {object} dto.Response{data=TraceCodeResponse}
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /trace-codes/{code}/deactivate [post]
func (h *TraceHandler) Deactivate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	binding, err := h.traces.Deactivate(c.Request.Context(), actor, c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTraceCodeResponse(*binding))
}
