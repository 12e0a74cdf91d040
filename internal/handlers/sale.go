// internal/handlers/sale.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type SaleHandler struct {
	saleService *services.SaleService
}

func NewSaleHandler(saleService *services.SaleService) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
	}
}

// POST /sales
func (h *SaleHandler) RegisterSale(c *gin.Context) {
	var req services.RegisterSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	sale, err := h.saleService.RegisterSale(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, sale)
}

// GET /sales
func (h *SaleHandler) ListSales(c *gin.Context) {
	filter := services.SaleFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	var ok bool
	if filter.SellerID, ok = parseUUIDQuery(c, "seller_id"); !ok {
		return
	}
	if filter.SubBatchID, ok = parseUUIDQuery(c, "sub_batch_id"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		s := models.SaleStatus(status)
		filter.Status = &s
	}
	if saleType := c.Query("type"); saleType != "" {
		t := models.SaleType(saleType)
		filter.Type = &t
	}

	result, err := h.saleService.ListSales(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, sale)
}

// PUT /sales/:id/approve
func (h *SaleHandler) ApproveSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sale, err := h.saleService.ApproveSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, sale)
}

// PUT /sales/:id/reject
func (h *SaleHandler) RejectSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.RejectSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	sale, err := h.saleService.RejectSale(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, sale)
}
