// internal/services/settlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/calculator"
	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/metrics"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

const (
	OriginOperator = "operator"
	OriginTrigger  = "trigger"

	referencePrefix = "CDR"
)

type SettlementService struct {
	db       *gorm.DB
	cfg      config.SettlementConfig
	rules    eligibilityRules
	batches  *BatchService
	alerts   *AlertService
	notifier *NotificationService
}

type CreateSettlementRequest struct {
	SubBatchID uuid.UUID `json:"sub_batch_id" validate:"required"`
	Forced     bool      `json:"forced"`
}

type ConfirmSettlementRequest struct {
	AmountReceived decimal.Decimal `json:"amount_received"`
	Force          bool            `json:"force"`
	Note           string          `json:"note,omitempty" validate:"max=1000"`
}

type CancelSettlementRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type SettlementFilter struct {
	utils.PaginationParams
	BatchID    *uuid.UUID               `json:"batch_id,omitempty"`
	SubBatchID *uuid.UUID               `json:"sub_batch_id,omitempty"`
	Status     *models.SettlementStatus `json:"status,omitempty"`
	Type       *models.SettlementType   `json:"type,omitempty"`
}

// SettlementPreview is the read-only proposal for a sub-batch.
type SettlementPreview struct {
	SubBatchID     uuid.UUID             `json:"sub_batch_id"`
	BatchID        uuid.UUID             `json:"batch_id"`
	Sequence       int                   `json:"sequence"`
	TotalInBatch   int                   `json:"total_in_batch"`
	BusinessModel  models.BusinessModel  `json:"business_model"`
	ExpectedAmount decimal.Decimal       `json:"expected_amount"`
	Proposal       *calculator.Proposal  `json:"proposal"`
	Cascade        []models.CascadeShare `json:"cascade,omitempty"`
	Eligibility    *EligibilityResult    `json:"eligibility"`
}

func NewSettlementService(db *gorm.DB, cfg config.SettlementConfig, batches *BatchService, alerts *AlertService, notifier *NotificationService) *SettlementService {
	return &SettlementService{
		db:       db,
		cfg:      cfg,
		rules:    eligibilityRules{cfg: cfg},
		batches:  batches,
		alerts:   alerts,
		notifier: notifier,
	}
}

func (s *SettlementService) sellerProfitPct(model models.BusinessModel) decimal.Decimal {
	if model == models.BusinessModelCascadeSplit {
		return decimal.NewFromInt(int64(s.cfg.CascadeSplitSellerPct))
	}
	return decimal.NewFromInt(int64(s.cfg.DirectSplitSellerPct))
}

func (s *SettlementService) rootNode(ctx context.Context, directory *SellerDirectory) (calculator.ChainNode, error) {
	var (
		root *models.Seller
		err  error
	)
	if s.cfg.RootSellerID != "" {
		id, parseErr := uuid.Parse(s.cfg.RootSellerID)
		if parseErr != nil {
			return calculator.ChainNode{}, fmt.Errorf("invalid root seller id: %w", parseErr)
		}
		root, err = directory.Get(ctx, id)
	} else {
		root, err = directory.Root(ctx)
	}
	if err != nil {
		return calculator.ChainNode{}, err
	}
	return calculator.ChainNode{ID: root.ID, Name: root.Name, IsRoot: true}, nil
}

// computeTx builds the proposal and, for cascade-eligible branches, the recruiter breakdown.
// Seller lookups go through tx so the whole computation sees one snapshot.
func (s *SettlementService) computeTx(ctx context.Context, tx *gorm.DB, sub *models.SubBatch, batch *models.Batch) (*calculator.Proposal, []models.CascadeShare, error) {
	revenue, err := approvedRevenue(tx, sub.ID)
	if err != nil {
		return nil, nil, err
	}

	proposal, err := calculator.Compute(calculator.Input{
		Sequence:                  sub.Sequence,
		TotalSubBatches:           batch.SubBatchCount,
		BusinessModel:             batch.BusinessModel,
		Revenue:                   revenue,
		SurplusIn:                 batch.CarriedSurplus,
		FinancierInvestment:       batch.FinancierInvestment,
		FinancierRecovered:        batch.FinancierRecovered,
		SellerInvestment:          batch.SellerInvestment,
		SellerInvestmentRecovered: batch.SellerInvestmentRecovered,
		SellerProfitPct:           s.sellerProfitPct(batch.BusinessModel),
	})
	if err != nil {
		if errors.Is(err, calculator.ErrUnsupportedSequence) {
			return nil, nil, &DomainError{Kind: KindValidation, Message: err.Error()}
		}
		return nil, nil, err
	}

	if !proposal.CascadeEligible || !proposal.UpwardProfit.IsPositive() {
		return proposal, nil, nil
	}

	directory := NewSellerDirectory(tx)
	root, err := s.rootNode(ctx, directory)
	if err != nil {
		return nil, nil, err
	}
	distributor := calculator.NewDistributor(directory, s.cfg.RecruiterMaxDepth, root)
	shares, err := distributor.Distribute(ctx, batch.SellerID, proposal.UpwardProfit)
	if err != nil {
		if errors.Is(err, calculator.ErrRecruiterChain) {
			return nil, nil, &DomainError{
				Kind:    KindRecruiterChain,
				Message: err.Error(),
				Details: map[string]interface{}{"seller_id": batch.SellerID.String()},
			}
		}
		return nil, nil, err
	}
	return proposal, shares, nil
}

// ComputeSettlement previews the settlement of a released or settling sub-batch without writing.
func (s *SettlementService) ComputeSettlement(ctx context.Context, subBatchID uuid.UUID) (*SettlementPreview, error) {
	db := s.db.WithContext(ctx)
	sub, batch, err := loadSubBatchWithBatch(db, subBatchID)
	if err != nil {
		return nil, err
	}
	if sub.State != models.SubBatchStateReleased && sub.State != models.SubBatchStateSettling {
		return nil, invalidTransition("only released or settling sub-batches can be previewed", sub.State)
	}

	proposal, cascade, err := s.computeTx(ctx, db, sub, batch)
	if err != nil {
		return nil, err
	}
	eligibility, err := s.rules.Evaluate(db, sub, batch)
	if err != nil {
		return nil, err
	}

	return &SettlementPreview{
		SubBatchID:     sub.ID,
		BatchID:        batch.ID,
		Sequence:       sub.Sequence,
		TotalInBatch:   batch.SubBatchCount,
		BusinessModel:  batch.BusinessModel,
		ExpectedAmount: proposal.UpwardAmount,
		Proposal:       proposal,
		Cascade:        cascade,
		Eligibility:    eligibility,
	}, nil
}

// CreateSettlement opens a settlement for a released sub-batch. Unless forced,
// the sub-batch must currently meet its trigger condition.
func (s *SettlementService) CreateSettlement(ctx context.Context, req *CreateSettlementRequest) (*models.Settlement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}
	return s.createSettlement(ctx, req.SubBatchID, req.Forced, OriginOperator)
}

func (s *SettlementService) createSettlement(ctx context.Context, subBatchID uuid.UUID, forced bool, origin string) (*models.Settlement, error) {
	var settlement *models.Settlement
	err := withRetry(ctx, "create_settlement", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, batch, err := loadSubBatchWithBatch(tx, subBatchID)
			if err != nil {
				return err
			}
			if batch.State != models.BatchStateActive {
				return invalidTransition("batch is not active", batch.State)
			}
			if sub.State != models.SubBatchStateReleased {
				return invalidTransition("settlement requires a released sub-batch", sub.State)
			}

			open, err := openSettlementExists(tx, sub.ID)
			if err != nil {
				return err
			}
			if open {
				return invalidTransition("sub-batch already has an open settlement", sub.State)
			}

			if !forced {
				result, err := s.rules.Evaluate(tx, sub, batch)
				if err != nil {
					return err
				}
				if !result.Eligible {
					return &DomainError{
						Kind:         KindInvalidStateTransition,
						Message:      "sub-batch is not eligible for settlement: " + result.Reason,
						CurrentState: string(sub.State),
						Details: map[string]interface{}{
							"trigger":         result.Trigger,
							"revenue":         result.Revenue.String(),
							"threshold":       result.Threshold.String(),
							"remaining_ratio": result.RemainingRatio.StringFixed(4),
						},
					}
				}
			}

			proposal, cascade, err := s.computeTx(ctx, tx, sub, batch)
			if err != nil {
				return err
			}

			reference, err := utils.GenerateReference(referencePrefix)
			if err != nil {
				return fmt.Errorf("failed to generate reference: %w", err)
			}

			settlement = &models.Settlement{
				Reference:                reference,
				BatchID:                  batch.ID,
				SubBatchID:               sub.ID,
				Sequence:                 sub.Sequence,
				Type:                     proposal.Type,
				Branch:                   string(proposal.Branch),
				Status:                   models.SettlementStatusPending,
				Forced:                   forced,
				Revenue:                  proposal.Revenue,
				AvailableAmount:          proposal.Available,
				ExpectedAmount:           proposal.UpwardAmount,
				SellerAmount:             proposal.SellerAmount,
				FinancierRecovery:        proposal.FinancierRecovery,
				SellerInvestmentRecovery: proposal.SellerInvestmentRecovery,
				SellerProfit:             proposal.SellerProfit,
				UpwardProfit:             proposal.UpwardProfit,
				SurplusIn:                proposal.SurplusIn,
				SurplusOut:               proposal.SurplusOut,
				Breakdown:                models.Breakdown{Steps: proposal.Steps, Cascade: cascade},
			}
			if err := tx.Omit("SubBatch").Create(settlement).Error; err != nil {
				return fmt.Errorf("failed to create settlement: %w", err)
			}

			if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{
				"state": models.SubBatchStateSettling,
			}); err != nil {
				return err
			}

			_, _, err = s.alerts.Raise(tx, AlertInput{
				Type:         models.AlertTypeSettlementCreated,
				Title:        "Settlement awaiting transfer",
				Message:      fmt.Sprintf("Settlement %s expects %s upward", reference, proposal.UpwardAmount.StringFixed(2)),
				ResourceType: "settlement",
				ResourceID:   &settlement.ID,
				Details: models.JSONB{
					"sub_batch_id": sub.ID.String(),
					"branch":       string(proposal.Branch),
					"expected":     proposal.UpwardAmount.String(),
					"forced":       forced,
				},
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.SettlementsCreated.WithLabelValues(settlement.Branch, origin).Inc()
	logrus.WithFields(logrus.Fields{
		"settlement_id": settlement.ID,
		"reference":     settlement.Reference,
		"sub_batch_id":  settlement.SubBatchID,
		"branch":        settlement.Branch,
		"expected":      settlement.ExpectedAmount.String(),
		"forced":        forced,
		"origin":        origin,
	}).Info("Settlement created")

	if s.notifier != nil {
		s.notifier.SettlementCreated(ctx, settlement)
	}
	return settlement, nil
}

// StartSettlement marks the transfer as under way.
func (s *SettlementService) StartSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := loadSettlement(tx, id)
		if err != nil {
			return err
		}
		if st.Status != models.SettlementStatusPending {
			return invalidTransition("only pending settlements can be started", st.Status)
		}

		res := tx.Model(&models.Settlement{}).
			Where("id = ? AND status = ?", st.ID, models.SettlementStatusPending).
			Updates(map[string]interface{}{
				"status":     models.SettlementStatusInProgress,
				"started_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to start settlement: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("settlement_id", id).Info("Settlement started")
	return s.GetSettlement(ctx, id)
}

// ConfirmSettlement records the amount actually transferred upward, settles the
// sub-batch and releases the next one or completes the batch.
//
// The difference between expected and received stays with the seller and is
// carried forward, together with revenue approved after the settlement was opened
// and credits booked on the batch in the meantime. Unsold units of the settled
// sub-batch go back to the stock ledger.
func (s *SettlementService) ConfirmSettlement(ctx context.Context, id uuid.UUID, req *ConfirmSettlementRequest) (*models.Settlement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}
	if req.AmountReceived.IsNegative() {
		return nil, &DomainError{Kind: KindValidation, Message: "amount received cannot be negative"}
	}

	var (
		settlement *models.Settlement
		batch      *models.Batch
	)
	err := withRetry(ctx, "confirm_settlement", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			st, err := loadSettlement(tx, id)
			if err != nil {
				return err
			}
			if !st.Status.Open() {
				return invalidTransition("settlement is already closed", st.Status)
			}

			sub, b, err := loadSubBatchWithBatch(tx, st.SubBatchID)
			if err != nil {
				return err
			}
			if sub.State != models.SubBatchStateSettling {
				return invalidTransition("sub-batch is not settling", sub.State)
			}

			received := req.AmountReceived
			shortfall := received.LessThan(st.ExpectedAmount)
			if shortfall && !req.Force {
				return &DomainError{
					Kind:    KindAmountMismatch,
					Message: fmt.Sprintf("received %s, expected %s", received.StringFixed(2), st.ExpectedAmount.StringFixed(2)),
					Details: map[string]interface{}{
						"expected": st.ExpectedAmount.String(),
						"received": received.String(),
					},
				}
			}

			// st.Revenue is what the proposal summed, so anything above it was approved later
			revenue, err := approvedRevenue(tx, sub.ID)
			if err != nil {
				return err
			}
			lateRevenue := revenue.Sub(st.Revenue)
			lateCredit := b.CarriedSurplus.Sub(st.SurplusIn)
			surplusOut := st.SurplusOut.Add(st.ExpectedAmount.Sub(received)).Add(lateRevenue).Add(lateCredit)

			now := time.Now()
			res := tx.Model(&models.Settlement{}).
				Where("id = ? AND status IN ?", st.ID,
					[]models.SettlementStatus{models.SettlementStatusPending, models.SettlementStatusInProgress}).
				Updates(map[string]interface{}{
					"status":             models.SettlementStatusSuccessful,
					"received_amount":    received,
					"surplus_out":        surplusOut,
					"shortfall_accepted": shortfall,
					"confirmed_at":       now,
					"confirmation_note":  req.Note,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to confirm settlement: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}

			if err := updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{
				"state":            models.SubBatchStateSettled,
				"settled_at":       now,
				"current_quantity": 0,
			}); err != nil {
				return err
			}
			if unsold := unsoldReserved(sub); unsold > 0 {
				if err := s.batches.stock.ReturnStock(tx, sub.ID, unsold, "unsold units of settled sub-batch"); err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"sub_batch_id": sub.ID,
					"returned":     unsold,
				}).Info("Unsold units returned to stock")
			}

			b.CarriedSurplus = surplusOut
			b.FinancierRecovered = b.FinancierRecovered.Add(decimal.Min(received, st.FinancierRecovery))
			b.SellerInvestmentRecovered = b.SellerInvestmentRecovered.Add(st.SellerInvestmentRecovery)
			updates := map[string]interface{}{
				"carried_surplus":             b.CarriedSurplus,
				"financier_recovered":         b.FinancierRecovered,
				"seller_investment_recovered": b.SellerInvestmentRecovered,
			}

			var unsettled int64
			if err := tx.Model(&models.SubBatch{}).
				Where("batch_id = ? AND state <> ?", b.ID, models.SubBatchStateSettled).
				Count(&unsettled).Error; err != nil {
				return fmt.Errorf("failed to count unsettled sub-batches: %w", err)
			}
			if unsettled == 0 {
				b.State = models.BatchStateCompleted
				b.CompletedAt = &now
				updates["state"] = b.State
				updates["completed_at"] = now
			}

			if err := updateVersioned(tx, &models.Batch{}, b.ID, b.Version, updates); err != nil {
				return err
			}
			b.Version++

			if b.State == models.BatchStateActive {
				var next models.SubBatch
				err := tx.Where("batch_id = ? AND sequence = ?", b.ID, sub.Sequence+1).First(&next).Error
				if err != nil {
					return fmt.Errorf("failed to load next sub-batch: %w", err)
				}
				if err := s.batches.releaseTx(tx, b, &next); err != nil {
					return err
				}
			}

			st.Status = models.SettlementStatusSuccessful
			st.ReceivedAmount = &received
			st.SurplusOut = surplusOut
			st.ShortfallAccepted = shortfall
			st.ConfirmedAt = &now
			st.ConfirmationNote = req.Note
			settlement = st
			batch = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	rewardsPct := decimal.NewFromFloat(s.cfg.RewardsContributionPct)
	rewards := settlement.UpwardProfit.Mul(rewardsPct).Div(decimal.NewFromInt(100)).Round(0)

	received, _ := settlement.ReceivedAmount.Float64()
	metrics.SettlementsConfirmed.WithLabelValues(string(settlement.Type), strconv.FormatBool(req.Force)).Inc()
	metrics.UpwardAmount.WithLabelValues(string(batch.BusinessModel)).Add(received)

	logrus.WithFields(logrus.Fields{
		"settlement_id": settlement.ID,
		"reference":     settlement.Reference,
		"batch_id":      batch.ID,
		"sequence":      settlement.Sequence,
		"expected":      settlement.ExpectedAmount.String(),
		"received":      settlement.ReceivedAmount.String(),
		"surplus_out":   settlement.SurplusOut.String(),
		"shortfall":     settlement.ShortfallAccepted,
		"batch_state":   batch.State,
	}).Info("Settlement confirmed")

	if s.notifier != nil {
		s.notifier.SettlementConfirmed(ctx, settlement, batch, rewards, rewardsPct)
	}
	return settlement, nil
}

// CancelSettlement withdraws a pending settlement and reopens the sub-batch for sales.
func (s *SettlementService) CancelSettlement(ctx context.Context, id uuid.UUID, req *CancelSettlementRequest) (*models.Settlement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	err := withRetry(ctx, "cancel_settlement", s.cfg.MaxRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			st, err := loadSettlement(tx, id)
			if err != nil {
				return err
			}
			if st.Status != models.SettlementStatusPending {
				return invalidTransition("only pending settlements can be cancelled", st.Status)
			}

			var sub models.SubBatch
			if err := tx.First(&sub, "id = ?", st.SubBatchID).Error; err != nil {
				return fmt.Errorf("failed to load sub-batch: %w", err)
			}

			res := tx.Model(&models.Settlement{}).
				Where("id = ? AND status = ?", st.ID, models.SettlementStatusPending).
				Updates(map[string]interface{}{
					"status":            models.SettlementStatusCancelled,
					"cancelled_at":      time.Now(),
					"confirmation_note": req.Reason,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to cancel settlement: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConcurrentUpdate
			}

			if sub.State != models.SubBatchStateSettling {
				return nil
			}
			return updateVersioned(tx, &models.SubBatch{}, sub.ID, sub.Version, map[string]interface{}{
				"state": models.SubBatchStateReleased,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"settlement_id": id,
		"reason":        req.Reason,
	}).Info("Settlement cancelled")

	return s.GetSettlement(ctx, id)
}

func (s *SettlementService) GetSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	return loadSettlement(s.db.WithContext(ctx), id)
}

func (s *SettlementService) ListSettlements(ctx context.Context, filter *SettlementFilter) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Settlement{})
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
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
		return nil, fmt.Errorf("failed to count settlements: %w", err)
	}

	var settlements []models.Settlement
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "expected_amount", "sequence"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&settlements).Error; err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}

	result := utils.CreatePaginationResult(settlements, total, filter.PaginationParams)
	return &result, nil
}

// unsoldReserved is the part of the sub-batch's unsold units that the ledger actually reserved.
func unsoldReserved(sub *models.SubBatch) int {
	unsold := sub.CurrentQuantity - sub.Shortfall
	if unsold < 0 {
		return 0
	}
	return unsold
}

func loadSettlement(tx *gorm.DB, id uuid.UUID) (*models.Settlement, error) {
	var st models.Settlement
	if err := tx.First(&st, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("settlement", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &st, nil
}
