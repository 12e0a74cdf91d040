// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	costService  *services.CostConfigService
	alertService *services.AlertService
	authService  *services.AuthService
}

func NewAdminHandler(adminService *services.AdminService, costService *services.CostConfigService, alertService *services.AlertService, authService *services.AuthService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		costService:  costService,
		alertService: alertService,
		authService:  authService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/cost-config
func (h *AdminHandler) GetCostConfig(c *gin.Context) {
	cfg, err := h.costService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, cfg)
}

// PUT /admin/cost-config
func (h *AdminHandler) UpdateCostConfig(c *gin.Context) {
	adminID, ok := operatorID(c)
	if !ok {
		return
	}

	var req services.UpdateCostConfigRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg, err := h.costService.Update(c.Request.Context(), adminID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, cfg)
}

// GET /admin/alerts
func (h *AdminHandler) ListAlerts(c *gin.Context) {
	filter := services.AlertFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if alertType := c.Query("type"); alertType != "" {
		t := models.AlertType(alertType)
		filter.Type = &t
	}
	if status := c.Query("status"); status != "" {
		s := models.AlertStatus(status)
		filter.Status = &s
	}

	result, err := h.alertService.List(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// PUT /admin/alerts/:id/ack
func (h *AdminHandler) AcknowledgeAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.Acknowledge(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, alert)
}

// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	filter := services.AuditLogFilter{
		PaginationParams: utils.GetPaginationParams(c),
		ResourceType:     c.Query("resource_type"),
	}

	var ok bool
	if filter.OperatorID, ok = parseUUIDQuery(c, "operator_id"); !ok {
		return
	}

	result, err := h.adminService.ListAuditLogs(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// POST /admin/operators
func (h *AdminHandler) CreateOperator(c *gin.Context) {
	var req services.CreateOperatorRequest
	if !bindJSON(c, &req) {
		return
	}

	operator, err := h.authService.CreateOperator(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, operator)
}
