// internal/handlers/stock.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type StockHandler struct {
	stockService *services.StockService
}

func NewStockHandler(stockService *services.StockService) *StockHandler {
	return &StockHandler{
		stockService: stockService,
	}
}

// GET /stock
func (h *StockHandler) GetStatus(c *gin.Context) {
	status, err := h.stockService.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}

// POST /stock/production
func (h *StockHandler) RegisterProduction(c *gin.Context) {
	var req services.ProductionRequest
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.stockService.RegisterProduction(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, movement)
}

// POST /stock/adjustments
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req services.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.stockService.AdjustStock(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, movement)
}

// GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter := services.MovementFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	var ok bool
	if filter.SubBatchID, ok = parseUUIDQuery(c, "sub_batch_id"); !ok {
		return
	}
	if movementType := c.Query("type"); movementType != "" {
		t := models.MovementType(movementType)
		filter.Type = &t
	}

	result, err := h.stockService.ListMovements(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}
