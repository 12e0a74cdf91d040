// internal/services/stock_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/batch-settlement/internal/metrics"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

// StockService owns the central producer ledger row. Every mutation reads the
// row FOR UPDATE and appends a movement.
type StockService struct {
	db     *gorm.DB
	alerts *AlertService
}

type ProductionRequest struct {
	Quantity int             `json:"quantity" validate:"required,min=1"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Reason   string          `json:"reason,omitempty" validate:"max=500"`
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type StockStatus struct {
	Available     int             `json:"available"`
	Reserved      int             `json:"reserved"`
	Delivered     int             `json:"delivered"`
	TotalProduced int             `json:"total_produced"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	PendingDemand int             `json:"pending_demand"`
	Deficit       int             `json:"deficit"`
}

// Reservation is the outcome of reserving stock for a released sub-batch.
type Reservation struct {
	Requested int
	Fulfilled int
	Shortfall int
}

type MovementFilter struct {
	utils.PaginationParams
	Type       *models.MovementType `json:"type,omitempty"`
	SubBatchID *uuid.UUID           `json:"sub_batch_id,omitempty"`
}

func NewStockService(db *gorm.DB, alerts *AlertService) *StockService {
	return &StockService{db: db, alerts: alerts}
}

func (s *StockService) lockLedger(tx *gorm.DB) (*models.StockLedger, error) {
	var ledger models.StockLedger
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ledger, models.StockLedgerID).Error; err != nil {
		return nil, fmt.Errorf("failed to lock stock ledger: %w", err)
	}
	return &ledger, nil
}

func (s *StockService) saveLedger(tx *gorm.DB, ledger *models.StockLedger) error {
	if err := tx.Model(ledger).Updates(map[string]interface{}{
		"available":      ledger.Available,
		"reserved":       ledger.Reserved,
		"delivered":      ledger.Delivered,
		"total_produced": ledger.TotalProduced,
		"unit_cost":      ledger.UnitCost,
	}).Error; err != nil {
		return fmt.Errorf("failed to update stock ledger: %w", err)
	}
	return nil
}

func (s *StockService) record(tx *gorm.DB, movement *models.StockMovement) error {
	if err := tx.Create(movement).Error; err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}

func (s *StockService) RegisterProduction(ctx context.Context, req *ProductionRequest) (*models.StockMovement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}
	if req.UnitCost.IsNegative() {
		return nil, &DomainError{Kind: KindValidation, Message: "unit cost cannot be negative"}
	}

	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.lockLedger(tx)
		if err != nil {
			return err
		}

		ledger.Available += req.Quantity
		ledger.TotalProduced += req.Quantity
		ledger.UnitCost = req.UnitCost
		if err := s.saveLedger(tx, ledger); err != nil {
			return err
		}

		movement = &models.StockMovement{
			Type:             models.MovementTypeProduction,
			Quantity:         req.Quantity,
			Fulfilled:        req.Quantity,
			ResultingBalance: ledger.Available,
			UnitCost:         req.UnitCost,
			Reason:           req.Reason,
		}
		return s.record(tx, movement)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"quantity":  req.Quantity,
		"unit_cost": req.UnitCost.String(),
		"balance":   movement.ResultingBalance,
	}).Info("Production registered")

	s.refreshGauges(ctx)
	return movement, nil
}

// ReserveForRelease takes min(quantity, available) from the ledger. It never
// fails on insufficiency; the shortfall is recorded and alerted instead.
func (s *StockService) ReserveForRelease(tx *gorm.DB, subBatchID uuid.UUID, quantity int) (*Reservation, error) {
	ledger, err := s.lockLedger(tx)
	if err != nil {
		return nil, err
	}

	fulfilled := quantity
	if ledger.Available < fulfilled {
		fulfilled = ledger.Available
	}
	if fulfilled < 0 {
		fulfilled = 0
	}
	res := &Reservation{Requested: quantity, Fulfilled: fulfilled, Shortfall: quantity - fulfilled}

	ledger.Available -= fulfilled
	ledger.Reserved += fulfilled
	if err := s.saveLedger(tx, ledger); err != nil {
		return nil, err
	}

	if err := s.record(tx, &models.StockMovement{
		Type:             models.MovementTypeReservation,
		Quantity:         quantity,
		Fulfilled:        fulfilled,
		Shortfall:        res.Shortfall,
		ResultingBalance: ledger.Available,
		UnitCost:         ledger.UnitCost,
		SubBatchID:       &subBatchID,
	}); err != nil {
		return nil, err
	}

	if res.Shortfall > 0 {
		logrus.WithFields(logrus.Fields{
			"sub_batch_id": subBatchID,
			"requested":    quantity,
			"fulfilled":    fulfilled,
			"shortfall":    res.Shortfall,
		}).Warn("Stock reservation short, deficit tolerated")

		if _, _, err := s.alerts.Raise(tx, AlertInput{
			Type:         models.AlertTypeStockDeficit,
			Title:        "Sub-batch released with stock shortfall",
			Message:      fmt.Sprintf("Reserved %d of %d units; %d units are owed by production", fulfilled, quantity, res.Shortfall),
			Priority:     "high",
			ResourceType: "sub_batch",
			ResourceID:   &subBatchID,
			Details:      models.JSONB{"requested": quantity, "fulfilled": fulfilled, "shortfall": res.Shortfall},
		}); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Deliver moves units of an approved sale from reserved to delivered.
func (s *StockService) Deliver(tx *gorm.DB, subBatchID, saleID uuid.UUID, quantity int) error {
	ledger, err := s.lockLedger(tx)
	if err != nil {
		return err
	}

	moved := quantity
	if ledger.Reserved < moved {
		moved = ledger.Reserved
	}
	ledger.Reserved -= moved
	ledger.Delivered += moved
	if err := s.saveLedger(tx, ledger); err != nil {
		return err
	}

	return s.record(tx, &models.StockMovement{
		Type:             models.MovementTypeDelivery,
		Quantity:         quantity,
		Fulfilled:        moved,
		Shortfall:        quantity - moved,
		ResultingBalance: ledger.Available,
		UnitCost:         ledger.UnitCost,
		SubBatchID:       &subBatchID,
		SaleID:           &saleID,
	})
}

// ReturnStock puts reserved units back into available, reversing a cancellation.
func (s *StockService) ReturnStock(tx *gorm.DB, subBatchID uuid.UUID, quantity int, reason string) error {
	if quantity <= 0 {
		return nil
	}

	ledger, err := s.lockLedger(tx)
	if err != nil {
		return err
	}

	returned := quantity
	if ledger.Reserved < returned {
		returned = ledger.Reserved
	}
	ledger.Reserved -= returned
	ledger.Available += returned
	if err := s.saveLedger(tx, ledger); err != nil {
		return err
	}

	return s.record(tx, &models.StockMovement{
		Type:             models.MovementTypeReturn,
		Quantity:         quantity,
		Fulfilled:        returned,
		ResultingBalance: ledger.Available,
		UnitCost:         ledger.UnitCost,
		SubBatchID:       &subBatchID,
		Reason:           reason,
	})
}

func (s *StockService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*models.StockMovement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.lockLedger(tx)
		if err != nil {
			return err
		}

		if ledger.Available+req.Delta < 0 {
			return &DomainError{
				Kind:    KindInsufficientStock,
				Message: fmt.Sprintf("adjustment of %d would leave available at %d", req.Delta, ledger.Available+req.Delta),
				Details: map[string]interface{}{"available": ledger.Available},
			}
		}

		ledger.Available += req.Delta
		if err := s.saveLedger(tx, ledger); err != nil {
			return err
		}

		movement = &models.StockMovement{
			Type:             models.MovementTypeAdjustment,
			Quantity:         req.Delta,
			Fulfilled:        req.Delta,
			ResultingBalance: ledger.Available,
			UnitCost:         ledger.UnitCost,
			Reason:           req.Reason,
		}
		return s.record(tx, movement)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"delta":   req.Delta,
		"reason":  req.Reason,
		"balance": movement.ResultingBalance,
	}).Info("Stock adjusted")

	s.refreshGauges(ctx)
	return movement, nil
}

// pendingDemand sums assigned quantities of unreleased sub-batches in active batches.
func (s *StockService) pendingDemand(tx *gorm.DB) (int, error) {
	var demand int64
	err := tx.Model(&models.SubBatch{}).
		Joins("JOIN batches ON batches.id = sub_batches.batch_id AND batches.deleted_at IS NULL").
		Where("sub_batches.state = ? AND batches.state = ?", models.SubBatchStatePending, models.BatchStateActive).
		Select("COALESCE(SUM(sub_batches.assigned_quantity), 0)").
		Row().Scan(&demand)
	if err != nil {
		return 0, fmt.Errorf("failed to compute pending demand: %w", err)
	}
	return int(demand), nil
}

func (s *StockService) Status(ctx context.Context) (*StockStatus, error) {
	db := s.db.WithContext(ctx)

	var ledger models.StockLedger
	if err := db.First(&ledger, models.StockLedgerID).Error; err != nil {
		return nil, fmt.Errorf("failed to load stock ledger: %w", err)
	}

	demand, err := s.pendingDemand(db)
	if err != nil {
		return nil, err
	}

	deficit := demand - ledger.Available
	if deficit < 0 {
		deficit = 0
	}

	return &StockStatus{
		Available:     ledger.Available,
		Reserved:      ledger.Reserved,
		Delivered:     ledger.Delivered,
		TotalProduced: ledger.TotalProduced,
		UnitCost:      ledger.UnitCost,
		PendingDemand: demand,
		Deficit:       deficit,
	}, nil
}

// Deficit is max(0, pending demand - available).
func (s *StockService) Deficit(ctx context.Context) (int, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return 0, err
	}
	return status.Deficit, nil
}

func (s *StockService) ListMovements(ctx context.Context, filter *MovementFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.StockMovement{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.SubBatchID != nil {
		query = query.Where("sub_batch_id = ?", *filter.SubBatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count movements: %w", err)
	}

	var movements []models.StockMovement
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "type", "quantity"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	result := utils.CreatePaginationResult(movements, total, filter.PaginationParams)
	return &result, nil
}

// CheckDeficit raises a ledger-wide deficit alert when pending demand exceeds available stock.
func (s *StockService) CheckDeficit(ctx context.Context) (*StockStatus, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStock(status.Available, status.Reserved, status.Delivered, status.Deficit)

	if status.Deficit > 0 {
		_, _, err := s.alerts.Raise(s.db.WithContext(ctx), AlertInput{
			Type:         models.AlertTypeStockDeficit,
			Title:        "Stock deficit against pending sub-batches",
			Message:      fmt.Sprintf("Pending sub-batches need %d units, %d available", status.PendingDemand, status.Available),
			Priority:     "high",
			ResourceType: "stock_ledger",
			Details:      models.JSONB{"deficit": status.Deficit, "pending_demand": status.PendingDemand, "available": status.Available},
		})
		if err != nil {
			return nil, err
		}
	}
	return status, nil
}

func (s *StockService) refreshGauges(ctx context.Context) {
	status, err := s.Status(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to refresh stock gauges")
		return
	}
	metrics.ObserveStock(status.Available, status.Reserved, status.Delivered, status.Deficit)
}
