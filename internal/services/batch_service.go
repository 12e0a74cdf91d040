// internal/services/batch_service.go
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

	"github.com/javajoker/batch-settlement/internal/calculator"
	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type BatchService struct {
	db      *gorm.DB
	cfg     config.SettlementConfig
	stock   *StockService
	costs   *CostConfigService
	sellers *SellerDirectory
}

type CreateBatchRequest struct {
	SellerID          uuid.UUID       `json:"seller_id" validate:"required"`
	Quantity          int             `json:"quantity" validate:"required,min=1"`
	PerceivedUnitCost decimal.Decimal `json:"perceived_unit_cost"`
	SubBatchCount     int             `json:"sub_batch_count,omitempty" validate:"omitempty,oneof=2 3"`
}

type CancelBatchRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type BatchFilter struct {
	utils.PaginationParams
	SellerID *uuid.UUID         `json:"seller_id,omitempty"`
	State    *models.BatchState `json:"state,omitempty"`
}

func NewBatchService(db *gorm.DB, cfg config.SettlementConfig, stock *StockService, costs *CostConfigService, sellers *SellerDirectory) *BatchService {
	return &BatchService{
		db:      db,
		cfg:     cfg,
		stock:   stock,
		costs:   costs,
		sellers: sellers,
	}
}

// CreateBatch stores the batch with its sub-batches in one transaction and releases sub-batch 1.
func (s *BatchService) CreateBatch(ctx context.Context, req *CreateBatchRequest) (*models.Batch, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.PerceivedUnitCost.IsPositive() {
		return nil, &DomainError{Kind: KindValidation, Message: "perceived unit cost must be positive"}
	}

	seller, err := s.sellers.Get(ctx, req.SellerID)
	if err != nil {
		return nil, err
	}
	businessModel, ok := models.BusinessModelForTier(seller.Tier)
	if !ok {
		return nil, &DomainError{
			Kind:    KindValidation,
			Message: fmt.Sprintf("seller tier %s cannot own batches", seller.Tier),
		}
	}

	count := req.SubBatchCount
	if count == 0 {
		count = s.cfg.DefaultSubBatchCount
	}
	pcts, ok := s.cfg.SplitFor(count)
	if !ok {
		return nil, &DomainError{Kind: KindValidation, Message: fmt.Sprintf("unsupported sub-batch count %d", count)}
	}
	parts, err := calculator.Partition(req.Quantity, pcts)
	if err != nil {
		return nil, &DomainError{Kind: KindValidation, Message: err.Error()}
	}

	costConfig, err := s.costs.Get(ctx)
	if err != nil {
		return nil, err
	}
	investment := calculator.ComputeInvestment(req.Quantity, req.PerceivedUnitCost,
		costConfig.RealCostRatio, costConfig.FinancierInvestmentShare)

	batch := &models.Batch{
		SellerID:                  seller.ID,
		Quantity:                  req.Quantity,
		PerceivedUnitCost:         req.PerceivedUnitCost,
		PerceivedInvestment:       investment.Perceived,
		FinancierInvestment:       investment.Financier,
		SellerInvestment:          investment.Seller,
		BusinessModel:             businessModel,
		SubBatchCount:             count,
		State:                     models.BatchStateActive,
		CarriedSurplus:            decimal.Zero,
		FinancierRecovered:        decimal.Zero,
		SellerInvestmentRecovered: decimal.Zero,
		Version:                   1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Seller", "SubBatches").Create(batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		subBatches := make([]models.SubBatch, len(parts))
		for i, assigned := range parts {
			subBatches[i] = models.SubBatch{
				BatchID:          batch.ID,
				Sequence:         i + 1,
				AssignedQuantity: assigned,
				State:            models.SubBatchStatePending,
				Version:          1,
			}
			if err := tx.Omit("Batch").Create(&subBatches[i]).Error; err != nil {
				return fmt.Errorf("failed to create sub-batch %d: %w", i+1, err)
			}
		}

		return s.releaseTx(tx, batch, &subBatches[0])
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"batch_id":             batch.ID,
		"seller_id":            seller.ID,
		"quantity":             req.Quantity,
		"sub_batches":          parts,
		"business_model":       businessModel,
		"financier_investment": investment.Financier.String(),
	}).Info("Batch created")

	return s.GetBatch(ctx, batch.ID)
}

// releaseTx moves a sub-batch PENDING -> RELEASED and reserves its stock.
func (s *BatchService) releaseTx(tx *gorm.DB, batch *models.Batch, sub *models.SubBatch) error {
	if batch.State != models.BatchStateActive {
		return invalidTransition("batch is not active", batch.State)
	}
	if sub.State != models.SubBatchStatePending {
		return invalidTransition(fmt.Sprintf("sub-batch %d is not pending", sub.Sequence), sub.State)
	}

	if sub.Sequence > 1 {
		var prev models.SubBatch
		if err := tx.Where("batch_id = ? AND sequence = ?", sub.BatchID, sub.Sequence-1).First(&prev).Error; err != nil {
			return fmt.Errorf("failed to load previous sub-batch: %w", err)
		}
		if prev.State != models.SubBatchStateSettled {
			return &DomainError{
				Kind:         KindInvalidStateTransition,
				Message:      fmt.Sprintf("sub-batch %d cannot be released before sub-batch %d is settled", sub.Sequence, prev.Sequence),
				CurrentState: string(prev.State),
				Details:      map[string]interface{}{"blocking_sub_batch_id": prev.ID.String()},
			}
		}
	}

	reservation, err := s.stock.ReserveForRelease(tx, sub.ID, sub.AssignedQuantity)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{
		"state":              models.SubBatchStateReleased,
		"delivered_quantity": sub.AssignedQuantity,
		"current_quantity":   sub.AssignedQuantity,
		"shortfall":          reservation.Shortfall,
		"released_at":        now,
	}); err != nil {
		return err
	}

	sub.State = models.SubBatchStateReleased
	sub.DeliveredQuantity = sub.AssignedQuantity
	sub.CurrentQuantity = sub.AssignedQuantity
	sub.Shortfall = reservation.Shortfall
	sub.ReleasedAt = &now
	sub.Version++

	logrus.WithFields(logrus.Fields{
		"batch_id":     sub.BatchID,
		"sub_batch_id": sub.ID,
		"sequence":     sub.Sequence,
		"delivered":    sub.DeliveredQuantity,
		"shortfall":    reservation.Shortfall,
	}).Info("Sub-batch released")

	return nil
}

func (s *BatchService) ReleaseSubBatch(ctx context.Context, subBatchID uuid.UUID) (*models.SubBatch, error) {
	var released models.SubBatch
	err := withRetry(ctx, "release_sub_batch", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, batch, err := loadSubBatchWithBatch(tx, subBatchID)
			if err != nil {
				return err
			}
			if err := s.releaseTx(tx, batch, sub); err != nil {
				return err
			}
			released = *sub
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// CancelBatch is allowed only while no sale was ever registered against the batch.
func (s *BatchService) CancelBatch(ctx context.Context, batchID uuid.UUID, req *CancelBatchRequest) (*models.Batch, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	err := withRetry(ctx, "cancel_batch", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			batch, err := loadBatch(tx, batchID)
			if err != nil {
				return err
			}
			if batch.State != models.BatchStateActive {
				return invalidTransition("only active batches can be cancelled", batch.State)
			}

			var subBatches []models.SubBatch
			if err := tx.Where("batch_id = ?", batch.ID).Order("sequence").Find(&subBatches).Error; err != nil {
				return fmt.Errorf("failed to load sub-batches: %w", err)
			}
			ids := make([]uuid.UUID, len(subBatches))
			for i, sb := range subBatches {
				ids[i] = sb.ID
			}

			var sales int64
			if err := tx.Model(&models.Sale{}).Where("sub_batch_id IN ?", ids).Count(&sales).Error; err != nil {
				return fmt.Errorf("failed to count sales: %w", err)
			}
			if sales > 0 {
				return &DomainError{
					Kind:         KindInvalidStateTransition,
					Message:      fmt.Sprintf("batch has %d sales and cannot be cancelled", sales),
					CurrentState: string(batch.State),
				}
			}

			var settlements int64
			if err := tx.Model(&models.Settlement{}).
				Where("batch_id = ? AND status <> ?", batch.ID, models.SettlementStatusCancelled).
				Count(&settlements).Error; err != nil {
				return fmt.Errorf("failed to count settlements: %w", err)
			}
			if settlements > 0 {
				return invalidTransition("batch already has settlements", batch.State)
			}

			for _, sb := range subBatches {
				if sb.State != models.SubBatchStateReleased {
					continue
				}
				reserved := sb.DeliveredQuantity - sb.Shortfall
				if err := s.stock.ReturnStock(tx, sb.ID, reserved, req.Reason); err != nil {
					return err
				}
			}

			now := time.Now()
			return updateVersioned(tx, &models.Batch{}, batch.ID, batch.Version, map[string]interface{}{
				"state":        models.BatchStateCancelled,
				"cancelled_at": now,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"batch_id": batchID,
		"reason":   req.Reason,
	}).Info("Batch cancelled")

	return s.GetBatch(ctx, batchID)
}

func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	err := s.db.WithContext(ctx).
		Preload("SubBatches", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("batch", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &batch, nil
}

func (s *BatchService) GetSubBatch(ctx context.Context, id uuid.UUID) (*models.SubBatch, error) {
	sub, batch, err := loadSubBatchWithBatch(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	sub.Batch = batch
	return sub, nil
}

func (s *BatchService) ListBatches(ctx context.Context, filter *BatchFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Batch{})
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}

	var batches []models.Batch
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "quantity", "state"})
	err := utils.ApplyPagination(query, filter.PaginationParams).
		Preload("SubBatches", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	result := utils.CreatePaginationResult(batches, total, filter.PaginationParams)
	return &result, nil
}

func loadBatch(tx *gorm.DB, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	if err := tx.First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("batch", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &batch, nil
}

func loadSubBatchWithBatch(tx *gorm.DB, id uuid.UUID) (*models.SubBatch, *models.Batch, error) {
	var sub models.SubBatch
	if err := tx.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("sub-batch", id)
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}
	batch, err := loadBatch(tx, sub.BatchID)
	if err != nil {
		return nil, nil, err
	}
	return &sub, batch, nil
}
