// internal/services/sale_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/metrics"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

// SubBatchChecker is notified after a sale approval so eligibility is evaluated synchronously.
type SubBatchChecker interface {
	CheckSubBatch(ctx context.Context, subBatchID uuid.UUID) (*EligibilityResult, error)
}

type SaleService struct {
	db      *gorm.DB
	cfg     config.SettlementConfig
	stock   *StockService
	costs   *CostConfigService
	checker SubBatchChecker
}

type RegisterSaleRequest struct {
	SellerID   uuid.UUID        `json:"seller_id" validate:"required"`
	SubBatchID *uuid.UUID       `json:"sub_batch_id,omitempty"`
	Type       models.SaleType  `json:"type" validate:"required,sale_type"`
	Quantity   int              `json:"quantity" validate:"required,min=1"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	Notes      string           `json:"notes,omitempty" validate:"max=1000"`
}

type RejectSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type SaleFilter struct {
	utils.PaginationParams
	SellerID   *uuid.UUID         `json:"seller_id,omitempty"`
	SubBatchID *uuid.UUID         `json:"sub_batch_id,omitempty"`
	Status     *models.SaleStatus `json:"status,omitempty"`
	Type       *models.SaleType   `json:"type,omitempty"`
}

func NewSaleService(db *gorm.DB, cfg config.SettlementConfig, stock *StockService, costs *CostConfigService) *SaleService {
	return &SaleService{
		db:    db,
		cfg:   cfg,
		stock: stock,
		costs: costs,
	}
}

// SetChecker wires the trigger detector after both services exist.
func (s *SaleService) SetChecker(checker SubBatchChecker) {
	s.checker = checker
}

// RegisterSale validates the sale, prices it and reserves units on the sub-batch.
// Validation failures happen before any write.
func (s *SaleService) RegisterSale(ctx context.Context, req *RegisterSaleRequest) (*models.Sale, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	costConfig, err := s.costs.Get(ctx)
	if err != nil {
		return nil, err
	}
	unitPrice, totalPrice, err := s.costs.UnitPrice(costConfig, req.Type, req.Quantity, req.UnitPrice)
	if err != nil {
		return nil, err
	}

	var sale *models.Sale
	err = withRetry(ctx, "register_sale", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, err := s.resolveSubBatch(tx, req)
			if err != nil {
				return err
			}

			if sub.State != models.SubBatchStateReleased {
				return invalidTransition("sales are only accepted on a released sub-batch", sub.State)
			}
			if req.Quantity > sub.CurrentQuantity {
				return &DomainError{
					Kind:    KindInsufficientStock,
					Message: fmt.Sprintf("requested %d units, %d left in sub-batch", req.Quantity, sub.CurrentQuantity),
					Details: map[string]interface{}{"current_quantity": sub.CurrentQuantity},
				}
			}

			if req.Type == models.SaleTypeGift {
				if err := s.checkGiftQuota(tx, sub, req.Quantity, costConfig.GiftQuotaPct); err != nil {
					return err
				}
			}

			if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{
				"current_quantity": sub.CurrentQuantity - req.Quantity,
			}); err != nil {
				return err
			}

			sale = &models.Sale{
				SellerID:   req.SellerID,
				SubBatchID: sub.ID,
				Type:       req.Type,
				Quantity:   req.Quantity,
				UnitPrice:  unitPrice,
				TotalPrice: totalPrice,
				Status:     models.SaleStatusPending,
				Notes:      req.Notes,
			}
			if err := tx.Omit("SubBatch").Create(sale).Error; err != nil {
				return fmt.Errorf("failed to create sale: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.SalesRegistered.WithLabelValues(string(sale.Type)).Inc()
	logrus.WithFields(logrus.Fields{
		"sale_id":      sale.ID,
		"sub_batch_id": sale.SubBatchID,
		"type":         sale.Type,
		"quantity":     sale.Quantity,
		"total":        sale.TotalPrice.String(),
	}).Info("Sale registered")

	return sale, nil
}

// resolveSubBatch uses the requested sub-batch or the seller's released one with stock left.
func (s *SaleService) resolveSubBatch(tx *gorm.DB, req *RegisterSaleRequest) (*models.SubBatch, error) {
	if req.SubBatchID != nil {
		sub, batch, err := loadSubBatchWithBatch(tx, *req.SubBatchID)
		if err != nil {
			return nil, err
		}
		if batch.SellerID != req.SellerID {
			return nil, &DomainError{Kind: KindValidation, Message: "sub-batch belongs to another seller"}
		}
		return sub, nil
	}

	var sub models.SubBatch
	err := tx.Joins("JOIN batches ON batches.id = sub_batches.batch_id AND batches.deleted_at IS NULL").
		Where("batches.seller_id = ? AND batches.state = ?", req.SellerID, models.BatchStateActive).
		Where("sub_batches.state = ? AND sub_batches.current_quantity > 0", models.SubBatchStateReleased).
		Order("batches.created_at, sub_batches.sequence").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DomainError{
				Kind:    KindInsufficientStock,
				Message: "seller has no released sub-batch with stock left",
			}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sub, nil
}

// checkGiftQuota caps lifetime pending+approved gift units at floor(delivered * pct / 100).
func (s *SaleService) checkGiftQuota(tx *gorm.DB, sub *models.SubBatch, quantity int, pct decimal.Decimal) error {
	quota := GiftQuota(sub.DeliveredQuantity, pct)

	var used int64
	err := tx.Model(&models.Sale{}).
		Where("sub_batch_id = ? AND type = ? AND status IN ?", sub.ID, models.SaleTypeGift,
			[]models.SaleStatus{models.SaleStatusPending, models.SaleStatusApproved}).
		Select("COALESCE(SUM(quantity), 0)").
		Row().Scan(&used)
	if err != nil {
		return fmt.Errorf("failed to sum gift units: %w", err)
	}

	if int(used)+quantity > quota {
		return &DomainError{
			Kind:    KindInvalidGiftQuota,
			Message: fmt.Sprintf("gift quota is %d units, %d already used", quota, used),
			Details: map[string]interface{}{"quota": quota, "used": used, "requested": quantity},
		}
	}
	return nil
}

// GiftQuota is floor(delivered * pct / 100).
func GiftQuota(delivered int, pct decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(delivered)).Mul(pct).Div(decimal.NewFromInt(100)).Floor().IntPart())
}

// ApproveSale books the sale as revenue of its sub-batch. A sale approved after
// its sub-batch settled is credited to the batch's carried surplus.
func (s *SaleService) ApproveSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale *models.Sale
	carried := false
	err := withRetry(ctx, "approve_sale", s.cfg.MaxRetries, func() error {
		carried = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			sale, err = loadPendingSale(tx, saleID)
			if err != nil {
				return err
			}

			sub, batch, err := loadSubBatchWithBatch(tx, sale.SubBatchID)
			if err != nil {
				return err
			}
			// a settlement confirming concurrently must see this approval or conflict with it
			if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{}); err != nil {
				return err
			}
			if sub.State == models.SubBatchStateSettled {
				if err := updateVersioned(tx, &models.Batch{}, batch.ID, batch.Version, map[string]interface{}{
					"carried_surplus": batch.CarriedSurplus.Add(sale.TotalPrice),
				}); err != nil {
					return err
				}
				carried = true
				if batch.State == models.BatchStateCompleted {
					logrus.WithFields(logrus.Fields{
						"batch_id": batch.ID,
						"sale_id":  sale.ID,
						"amount":   sale.TotalPrice.String(),
					}).Warn("Sale approved on a completed batch; amount left in carried surplus")
				}
			}

			now := time.Now()
			res := tx.Model(&models.Sale{}).
				Where("id = ? AND status = ?", sale.ID, models.SaleStatusPending).
				Updates(map[string]interface{}{"status": models.SaleStatusApproved, "approved_at": now})
			if res.Error != nil {
				return fmt.Errorf("failed to approve sale: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}
			sale.Status = models.SaleStatusApproved
			sale.ApprovedAt = &now

			return s.stock.Deliver(tx, sale.SubBatchID, sale.ID, sale.Quantity)
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.SalesDecided.WithLabelValues(string(models.SaleStatusApproved)).Inc()
	logrus.WithFields(logrus.Fields{
		"sale_id":      sale.ID,
		"sub_batch_id": sale.SubBatchID,
		"total":        sale.TotalPrice.String(),
		"carried":      carried,
	}).Info("Sale approved")

	if s.checker != nil {
		if _, err := s.checker.CheckSubBatch(ctx, sale.SubBatchID); err != nil {
			// the approval is committed; a failed check is picked up by the next scan
			logrus.WithError(err).WithField("sub_batch_id", sale.SubBatchID).Warn("Post-approval settlement check failed")
		}
	}

	return sale, nil
}

// RejectSale restores the reserved units to the sub-batch, or to stock once the
// sub-batch has settled.
func (s *SaleService) RejectSale(ctx context.Context, saleID uuid.UUID, req *RejectSaleRequest) (*models.Sale, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	var sale *models.Sale
	err := withRetry(ctx, "reject_sale", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			sale, err = loadPendingSale(tx, saleID)
			if err != nil {
				return err
			}

			var sub models.SubBatch
			if err := tx.First(&sub, "id = ?", sale.SubBatchID).Error; err != nil {
				return fmt.Errorf("failed to load sub-batch: %w", err)
			}

			updates := map[string]interface{}{}
			if sub.State != models.SubBatchStateSettled {
				updates["current_quantity"] = sub.CurrentQuantity + sale.Quantity
			}
			if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, updates); err != nil {
				return err
			}
			if sub.State == models.SubBatchStateSettled {
				if err := s.stock.ReturnStock(tx, sub.ID, sale.Quantity, "rejected sale on settled sub-batch"); err != nil {
					return err
				}
			}

			now := time.Now()
			res := tx.Model(&models.Sale{}).
				Where("id = ? AND status = ?", sale.ID, models.SaleStatusPending).
				Updates(map[string]interface{}{
					"status":           models.SaleStatusRejected,
					"rejected_at":      now,
					"rejection_reason": req.Reason,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to reject sale: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}
			sale.Status = models.SaleStatusRejected
			sale.RejectedAt = &now
			sale.RejectionReason = req.Reason
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.SalesDecided.WithLabelValues(string(models.SaleStatusRejected)).Inc()
	logrus.WithFields(logrus.Fields{
		"sale_id":  sale.ID,
		"restored": sale.Quantity,
		"reason":   req.Reason,
	}).Info("Sale rejected")

	return sale, nil
}

func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("sale", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sale, nil
}

func (s *SaleService) ListSales(ctx context.Context, filter *SaleFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Sale{})
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.SubBatchID != nil {
		query = query.Where("sub_batch_id = ?", *filter.SubBatchID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	var sales []models.Sale
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "total_price", "quantity"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	result := utils.CreatePaginationResult(sales, total, filter.PaginationParams)
	return &result, nil
}

func loadPendingSale(tx *gorm.DB, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := tx.First(&sale, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("sale", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if sale.Status != models.SaleStatusPending {
		return nil, invalidTransition("only pending sales can be decided", sale.Status)
	}
	return &sale, nil
}

// approvedRevenue sums approved sale totals for a sub-batch.
func approvedRevenue(tx *gorm.DB, subBatchID uuid.UUID) (decimal.Decimal, error) {
	query := tx.Model(&models.Sale{}).
		Where("sub_batch_id = ? AND status = ?", subBatchID, models.SaleStatusApproved)

	var total decimal.NullDecimal
	if err := query.Select("SUM(total_price)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
