// internal/handlers/batch.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type BatchHandler struct {
	batchService *services.BatchService
}

func NewBatchHandler(batchService *services.BatchService) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
	}
}

// POST /batches
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req services.CreateBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	batch, err := h.batchService.CreateBatch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, batch)
}

// GET /batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	filter := services.BatchFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	sellerID, ok := parseUUIDQuery(c, "seller_id")
	if !ok {
		return
	}
	filter.SellerID = sellerID

	if state := c.Query("state"); state != "" {
		s := models.BatchState(state)
		filter.State = &s
	}

	result, err := h.batchService.ListBatches(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	batch, err := h.batchService.GetBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, batch)
}

// POST /batches/:id/cancel
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.CancelBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	batch, err := h.batchService.CancelBatch(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, batch)
}

// GET /sub-batches/:id
func (h *BatchHandler) GetSubBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.batchService.GetSubBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, sub)
}

// POST /sub-batches/:id/release
func (h *BatchHandler) ReleaseSubBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.batchService.ReleaseSubBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, sub)
}
