package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
)

// AuditReader reads the ledger operation audit trail
type AuditReader interface {
	ListFor(ctx context.Context, itemID string) ([]ledger.OperationRecord, error)
	ListFailed(ctx context.Context, filter shared.Filter) (shared.Paginated[ledger.OperationRecord], error)
}

// Resubmitter replays a failed ledger write
type Resubmitter interface {
	Resubmit(ctx context.Context, actor shared.Actor, recordID string) (*traceability.ResubmitResult, error)
}

// AuditHandler handles the operator audit views and manual resubmission
type AuditHandler struct {
	BaseHandler
	audit       AuditReader
	resubmitter Resubmitter
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditReader, resubmitter Resubmitter) *AuditHandler {
	return &AuditHandler{audit: audit, resubmitter: resubmitter}
}

// ListForItem returns every submission attempt for an item, oldest first
//
// @ID           listItemAudit
// @Summary      List an item's ledger attempts
// @Tags         audit
// @Produce      json
// @Param        itemId path string true "Item ID"
// @Success      200 {object} dto.Response{data=[]AuditRecordResponse}
// @Failure      403 {object} dto.Response
// @Security     BearerAuth
// @Router       /items/{itemId}/audit [get]
func (h *AuditHandler) ListForItem(c *gin.Context) {
	records, err := h.audit.ListFor(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAuditRecordResponses(records))
}

// ListFailed returns failed attempts that no later resubmission superseded
//
// @ID           listFailedAudit
// @Summary      List unresolved failed attempts
// @Tags         audit
// @Produce      json
// @Param        params query dto.ListRequest false "Paging"
// @Success      200 {object} dto.Response{data=[]AuditRecordResponse}
// @Failure      403 {object} dto.Response
// @Security     BearerAuth
// @Router       /audit/failed [get]
func (h *AuditHandler) ListFailed(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleValidation(c, err)
		return
	}

	page, err := h.audit.ListFailed(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toAuditRecordResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// Resubmit replays a failed record. The new attempt is appended to the audit trail;
// a ledger failure is reported in the body, not as an HTTP error.
//
// @ID           resubmitAudit
// @Summary      Resubmit a failed ledger write
// @Tags         audit
// @Produce      json
// @Param        recordId path string true "Audit record ID"
// @Success      200 {object} dto.Response{data=ResubmitResponse}
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /audit/{recordId}/resubmit [post]
func (h *AuditHandler) Resubmit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	result, err := h.resubmitter.Resubmit(c.Request.Context(), actor, c.Param("recordId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toResubmitResponse(result))
}
