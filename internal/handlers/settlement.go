// internal/handlers/settlement.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type SettlementHandler struct {
	settlementService *services.SettlementService
	triggerService    *services.TriggerService
}

func NewSettlementHandler(settlementService *services.SettlementService, triggerService *services.TriggerService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		triggerService:    triggerService,
	}
}

// GET /settlements/eligible
func (h *SettlementHandler) ListEligible(c *gin.Context) {
	eligible, err := h.triggerService.ListEligible(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"sub_batches": eligible,
		"count":       len(eligible),
	})
}

// POST /settlements/scan
func (h *SettlementHandler) RunScan(c *gin.Context) {
	report, err := h.triggerService.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// GET /sub-batches/:id/settlement-preview
func (h *SettlementHandler) Preview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	preview, err := h.settlementService.ComputeSettlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, preview)
}

// POST /settlements
func (h *SettlementHandler) CreateSettlement(c *gin.Context) {
	var req services.CreateSettlementRequest
	if !bindJSON(c, &req) {
		return
	}

	settlement, err := h.settlementService.CreateSettlement(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, settlement)
}

// PUT /settlements/:id/start
func (h *SettlementHandler) StartSettlement(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	settlement, err := h.settlementService.StartSettlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settlement)
}

// PUT /settlements/:id/confirm
func (h *SettlementHandler) ConfirmSettlement(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.ConfirmSettlementRequest
	if !bindJSON(c, &req) {
		return
	}

	// forcing a shortfall is an administrative override
	if req.Force {
		if role, _ := utils.GetRoleFromContext(c); role != string(models.OperatorRoleAdmin) {
			utils.ForbiddenResponse(c, "")
			return
		}
	}

	settlement, err := h.settlementService.ConfirmSettlement(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settlement)
}

// PUT /settlements/:id/cancel
func (h *SettlementHandler) CancelSettlement(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.CancelSettlementRequest
	if !bindJSON(c, &req) {
		return
	}

	settlement, err := h.settlementService.CancelSettlement(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settlement)
}

// GET /settlements
func (h *SettlementHandler) ListSettlements(c *gin.Context) {
	filter := services.SettlementFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	var ok bool
	if filter.BatchID, ok = parseUUIDQuery(c, "batch_id"); !ok {
		return
	}
	if filter.SubBatchID, ok = parseUUIDQuery(c, "sub_batch_id"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		s := models.SettlementStatus(status)
		filter.Status = &s
	}
	if settlementType := c.Query("type"); settlementType != "" {
		t := models.SettlementType(settlementType)
		filter.Type = &t
	}

	result, err := h.settlementService.ListSettlements(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /settlements/:id
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	settlement, err := h.settlementService.GetSettlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settlement)
}
