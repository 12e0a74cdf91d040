// internal/services/eligibility.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/models"
)

const (
	TriggerRevenue    = "REVENUE_THRESHOLD"
	TriggerStockRatio = "STOCK_RATIO"
)

type EligibilityResult struct {
	SubBatchID     uuid.UUID       `json:"sub_batch_id"`
	BatchID        uuid.UUID       `json:"batch_id"`
	Sequence       int             `json:"sequence"`
	TotalInBatch   int             `json:"total_in_batch"`
	Trigger        string          `json:"trigger"`
	Eligible       bool            `json:"eligible"`
	Skipped        bool            `json:"skipped"`
	Advisory       bool            `json:"advisory"`
	Reason         string          `json:"reason"`
	Revenue        decimal.Decimal `json:"revenue"`
	Threshold      decimal.Decimal `json:"threshold"`
	RemainingRatio decimal.Decimal `json:"remaining_ratio"`
	TriggerPct     int             `json:"trigger_pct"`
	SettlementID   *uuid.UUID      `json:"settlement_id,omitempty"`
}

// eligibilityRules decides whether a released sub-batch may be settled.
type eligibilityRules struct {
	cfg config.SettlementConfig
}

func (r eligibilityRules) triggerPct(sequence, total int) int {
	if sequence == 2 && total == 3 {
		return r.cfg.TriggerPctSecondOfThree
	}
	return r.cfg.TriggerPct
}

func openSettlementExists(tx *gorm.DB, subBatchID uuid.UUID) (bool, error) {
	var open int64
	err := tx.Model(&models.Settlement{}).
		Where("sub_batch_id = ? AND status IN ?", subBatchID,
			[]models.SettlementStatus{models.SettlementStatusPending, models.SettlementStatusInProgress}).
		Count(&open).Error
	if err != nil {
		return false, fmt.Errorf("failed to check open settlements: %w", err)
	}
	return open > 0, nil
}

// Evaluate reads committed state only.
func (r eligibilityRules) Evaluate(tx *gorm.DB, sub *models.SubBatch, batch *models.Batch) (*EligibilityResult, error) {
	result := &EligibilityResult{
		SubBatchID:     sub.ID,
		BatchID:        batch.ID,
		Sequence:       sub.Sequence,
		TotalInBatch:   batch.SubBatchCount,
		Revenue:        decimal.Zero,
		Threshold:      decimal.Zero,
		RemainingRatio: sub.RemainingRatio(),
		TriggerPct:     r.triggerPct(sub.Sequence, batch.SubBatchCount),
	}

	if batch.State != models.BatchStateActive || sub.State != models.SubBatchStateReleased {
		result.Skipped = true
		result.Reason = fmt.Sprintf("sub-batch is %s in a %s batch", sub.State, batch.State)
		return result, nil
	}

	open, err := openSettlementExists(tx, sub.ID)
	if err != nil {
		return nil, err
	}
	if open {
		result.Skipped = true
		result.Reason = "a settlement is already open"
		return result, nil
	}

	pct := decimal.NewFromInt(int64(result.TriggerPct)).Div(decimal.NewFromInt(100))
	stockLow := sub.DeliveredQuantity > 0 && result.RemainingRatio.LessThanOrEqual(pct)

	if sub.Sequence == 1 {
		revenue, err := approvedRevenue(tx, sub.ID)
		if err != nil {
			return nil, err
		}
		result.Trigger = TriggerRevenue
		result.Revenue = revenue
		result.Threshold = outstandingAmount(batch.FinancierInvestment, batch.FinancierRecovered)

		collected := revenue.Add(batch.CarriedSurplus)
		switch {
		case collected.GreaterThanOrEqual(result.Threshold):
			result.Eligible = true
			result.Reason = "collected revenue covers the financier investment"
		case stockLow:
			result.Advisory = true
			result.Reason = fmt.Sprintf("stock at %s%% but revenue %s short of %s",
				result.RemainingRatio.Mul(decimal.NewFromInt(100)).StringFixed(1),
				result.Threshold.Sub(collected).StringFixed(2), result.Threshold.StringFixed(2))
		default:
			result.Reason = "revenue below financier investment"
		}
		return result, nil
	}

	result.Trigger = TriggerStockRatio
	if stockLow {
		result.Eligible = true
		result.Reason = fmt.Sprintf("remaining stock at or below %d%%", result.TriggerPct)
	} else {
		result.Reason = fmt.Sprintf("remaining stock above %d%%", result.TriggerPct)
	}
	return result, nil
}

func outstandingAmount(total, recovered decimal.Decimal) decimal.Decimal {
	due := total.Sub(recovered)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
