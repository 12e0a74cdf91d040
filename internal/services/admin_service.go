// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type AdminService struct {
	db    *gorm.DB
	stock *StockService
}

type AdminDashboardStats struct {
	BatchesByState     map[string]int64 `json:"batches_by_state"`
	SubBatchesByState  map[string]int64 `json:"sub_batches_by_state"`
	SettlementsByState map[string]int64 `json:"settlements_by_state"`
	PendingSales       int64            `json:"pending_sales"`
	ApprovedRevenue    decimal.Decimal  `json:"approved_revenue"`
	TotalUpward        decimal.Decimal  `json:"total_upward"`
	TotalRetained      decimal.Decimal  `json:"total_retained"`
	CarriedSurplus     decimal.Decimal  `json:"carried_surplus"`
	UnreadAlerts       int64            `json:"unread_alerts"`
	Stock              *StockStatus     `json:"stock"`
}

type AuditLogFilter struct {
	utils.PaginationParams
	OperatorID   *uuid.UUID `json:"operator_id,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
}

type AuditEntry struct {
	OperatorID   *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	NewValues    map[string]interface{}
	IPAddress    string
	UserAgent    string
	StatusCode   int
}

func NewAdminService(db *gorm.DB, stock *StockService) *AdminService {
	return &AdminService{
		db:    db,
		stock: stock,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &AdminDashboardStats{}
	var err error

	if stats.BatchesByState, err = countByColumn(db.Model(&models.Batch{}), "state"); err != nil {
		return nil, err
	}
	if stats.SubBatchesByState, err = countByColumn(db.Model(&models.SubBatch{}), "state"); err != nil {
		return nil, err
	}
	if stats.SettlementsByState, err = countByColumn(db.Model(&models.Settlement{}), "status"); err != nil {
		return nil, err
	}

	if err := db.Model(&models.Sale{}).Where("status = ?", models.SaleStatusPending).Count(&stats.PendingSales).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending sales: %w", err)
	}
	if err := db.Model(&models.Alert{}).Where("status = ?", models.AlertStatusUnread).Count(&stats.UnreadAlerts).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	if stats.ApprovedRevenue, err = sumDecimal(db.Model(&models.Sale{}).
		Where("status = ?", models.SaleStatusApproved), "total_price"); err != nil {
		return nil, err
	}
	if stats.TotalUpward, err = sumDecimal(db.Model(&models.Settlement{}).
		Where("status = ?", models.SettlementStatusSuccessful), "received_amount"); err != nil {
		return nil, err
	}
	if stats.TotalRetained, err = sumDecimal(db.Model(&models.Settlement{}).
		Where("status = ?", models.SettlementStatusSuccessful), "seller_amount"); err != nil {
		return nil, err
	}
	if stats.CarriedSurplus, err = sumDecimal(db.Model(&models.Batch{}).
		Where("state = ?", models.BatchStateActive), "carried_surplus"); err != nil {
		return nil, err
	}

	if stats.Stock, err = s.stock.Status(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}

func countByColumn(query *gorm.DB, column string) (map[string]int64, error) {
	var rows []struct {
		Value string
		Count int64
	}
	if err := query.Select(column + " AS value, COUNT(*) AS count").Group(column).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", column, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Value] = row.Count
	}
	return counts, nil
}

func sumDecimal(query *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := query.Select("SUM(" + column + ")").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s: %w", column, err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// RecordAudit persists one operator action. Failures are returned so the caller can log them.
func (s *AdminService) RecordAudit(ctx context.Context, entry AuditEntry) error {
	auditLog := &models.AuditLog{
		OperatorID:   entry.OperatorID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		NewValues:    models.JSONB(entry.NewValues),
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		StatusCode:   entry.StatusCode,
	}
	if err := s.db.WithContext(ctx).Create(auditLog).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (s *AdminService) ListAuditLogs(ctx context.Context, filter *AuditLogFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.OperatorID != nil {
		query = query.Where("operator_id = ?", *filter.OperatorID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	var logs []models.AuditLog
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "action", "status_code"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	result := utils.CreatePaginationResult(logs, total, filter.PaginationParams)
	return &result, nil
}
