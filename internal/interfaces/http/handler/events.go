package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/shared"
)

// EventRecorder records field events on the local store and the ledger
type EventRecorder interface {
	RecordCollection(ctx context.Context, actor shared.Actor, in traceability.CollectionInput) (*traceability.EventResult, error)
	RecordQualityTest(ctx context.Context, actor shared.Actor, in traceability.QualityTestInput) (*traceability.EventResult, error)
	RecordProcessingStep(ctx context.Context, actor shared.Actor, in traceability.ProcessingInput) (*traceability.EventResult, error)
}

// EventHandler handles the three write endpoints
type EventHandler struct {
	BaseHandler
	recorder EventRecorder
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(recorder EventRecorder) *EventHandler {
	return &EventHandler{recorder: recorder}
}

// RecordCollection creates a batch from a harvest.
// Answers 201 when the ledger confirmed the write and 200 for a partial success.
//
// @ID           recordCollection
// @Summary      Record a collection event
// @Description  Creates an herb batch, binds a trace code and submits RecordCollection to the ledger
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays the first response for a retried request"
// @Param        request body traceability.CollectionInput true "Collection event"
// @Success      201 {object} dto.Response{data=EventResponse} "Ledger confirmed"
// @Success      200 {object} dto.Response{data=EventResponse} "Stored locally, ledger write pending"
// @Failure      400 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /events/collection [post]
func (h *EventHandler) RecordCollection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req traceability.CollectionInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.recorder.RecordCollection(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.LedgerConfirmed {
		h.Created(c, toEventResponse(result))
		return
	}
	h.Success(c, toEventResponse(result))
}

// RecordQualityTest records a laboratory result
//
// @ID           recordQualityTest
// @Summary      Record a quality test
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays the first response for a retried request"
// @Param        request body traceability.QualityTestInput true "Quality test result"
// @Success      200 {object} dto.Response{data=EventResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /events/quality-test [post]
func (h *EventHandler) RecordQualityTest(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req traceability.QualityTestInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.recorder.RecordQualityTest(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toEventResponse(result))
}

// RecordProcessingStep records one processing operation
//
// @ID           recordProcessingStep
// @Summary      Record a processing step
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays the first response for a retried request"
// @Param        request body traceability.ProcessingInput true "Processing step"
// @Success      200 {object} dto.Response{data=EventResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /events/processing [post]
func (h *EventHandler) RecordProcessingStep(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req traceability.ProcessingInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.recorder.RecordProcessingStep(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toEventResponse(result))
}
