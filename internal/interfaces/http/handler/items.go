package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
)

// ItemReader serves item views and metadata edits
type ItemReader interface {
	Get(ctx context.Context, itemID string) (*traceability.ItemView, error)
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[batch.HerbBatch], error)
	UpdateMetadata(ctx context.Context, actor shared.Actor, itemID string, patch map[string]any) (*batch.HerbBatch, error)
}

// JourneyReader reconciles an item's journey
type JourneyReader interface {
	Get(ctx context.Context, itemID string, opts traceability.JourneyOptions) (*ledger.Journey, error)
}

// ItemHandler handles item, metadata and journey endpoints
type ItemHandler struct {
	BaseHandler
	items    ItemReader
	journeys JourneyReader
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(items ItemReader, journeys JourneyReader) *ItemHandler {
	return &ItemHandler{items: items, journeys: journeys}
}

// ListItemsRequest filters the item list
type ListItemsRequest struct {
	dto.ListRequest
	Status      string `form:"status" binding:"omitempty,oneof=COLLECTED TESTED FAILED_TEST PROCESSED DISTRIBUTED"`
	Species     string `form:"species" binding:"omitempty,max=100"`
	CollectorID string `form:"collectorId" binding:"omitempty,max=64"`
}

// UpdateMetadataRequest is a metadata merge patch. A null value removes the key.
type UpdateMetadataRequest struct {
	Metadata map[string]any `json:"metadata" binding:"required"`
}

// Get returns one item with its trace codes
//
// @ID           getItem
// @Summary      Get an item
// @Tags         items
// @Produce      json
// @Param        itemId path string true "Item ID"
// @Success      200 {object} dto.Response{data=ItemResponse}
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /items/{itemId} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	view, err := h.items.Get(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toItemViewResponse(view))
}

// List returns a page of items
//
// @ID           listItems
// @Summary      List items
// @Tags         items
// @Produce      json
// @Param        params query ListItemsRequest false "Filters and paging"
// @Success      200 {object} dto.Response{data=[]ItemResponse}
// @Failure      400 {object} dto.Response
// @Security     BearerAuth
// @Router       /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	req := ListItemsRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleValidation(c, err)
		return
	}

	filter := req.ToFilter()
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}
	if req.Species != "" {
		filter.Filters["species"] = strings.TrimSpace(req.Species)
	}
	if req.CollectorID != "" {
		filter.Filters["collector_id"] = req.CollectorID
	}

	page, err := h.items.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]ItemResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toItemResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// UpdateMetadata merges a patch into the item's metadata
//
// @ID           updateItemMetadata
// @Summary      Merge item metadata
// @Description  Top-level keys are overwritten, nested objects merged, null removes a key
// @Tags         items
// @Accept       json
// @Produce      json
// @Param        itemId path string true "Item ID"
// @Param        request body UpdateMetadataRequest true "Metadata patch"
// @Success      200 {object} dto.Response{data=ItemResponse}
// @Failure      400 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /items/{itemId}/metadata [patch]
func (h *ItemHandler) UpdateMetadata(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req UpdateMetadataRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.items.UpdateMetadata(c.Request.Context(), actor, c.Param("itemId"), req.Metadata)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toItemResponse(item))
}

// JourneyRequest selects journey detail
type JourneyRequest struct {
	Detailed bool `form:"detailed"`
}

// GetJourney returns the reconciled custody history. A ledger outage yields a
// degraded journey, never an error.
//
// @ID           getItemJourney
// @Summary      Get an item's journey
// @Tags         items
// @Produce      json
// @Param        itemId path string true "Item ID"
// @Param        detailed query bool false "Include audit detail"
// @Success      200 {object} dto.Response{data=ledger.Journey}
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /items/{itemId}/journey [get]
func (h *ItemHandler) GetJourney(c *gin.Context) {
	var req JourneyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleValidation(c, err)
		return
	}

	journey, err := h.journeys.Get(c.Request.Context(), c.Param("itemId"), traceability.JourneyOptions{Detailed: req.Detailed})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, journey)
}
