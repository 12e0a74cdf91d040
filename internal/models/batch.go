// internal/models/batch.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Batch struct {
	BaseModel
	SellerID                  uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	Quantity                  int             `json:"quantity" gorm:"not null"`
	PerceivedUnitCost         decimal.Decimal `json:"perceived_unit_cost" gorm:"type:decimal(14,2);not null"`
	PerceivedInvestment       decimal.Decimal `json:"perceived_investment" gorm:"type:decimal(14,2);not null"`
	FinancierInvestment       decimal.Decimal `json:"financier_investment" gorm:"type:decimal(14,2);not null"`
	SellerInvestment          decimal.Decimal `json:"seller_investment" gorm:"type:decimal(14,2);not null"`
	BusinessModel             BusinessModel   `json:"business_model" gorm:"type:varchar(20);not null"`
	SubBatchCount             int             `json:"sub_batch_count" gorm:"not null"`
	State                     BatchState      `json:"state" gorm:"type:varchar(20);default:'ACTIVE';index"`
	CarriedSurplus            decimal.Decimal `json:"carried_surplus" gorm:"type:decimal(14,2);not null;default:0"`
	FinancierRecovered        decimal.Decimal `json:"financier_recovered" gorm:"type:decimal(14,2);not null;default:0"`
	SellerInvestmentRecovered decimal.Decimal `json:"seller_investment_recovered" gorm:"type:decimal(14,2);not null;default:0"`
	CompletedAt               *time.Time      `json:"completed_at"`
	CancelledAt               *time.Time      `json:"cancelled_at"`
	Version                   int             `json:"version" gorm:"not null;default:1"`

	// Relationships
	Seller     *Seller    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	SubBatches []SubBatch `json:"sub_batches,omitempty" gorm:"foreignKey:BatchID"`
}

// SellerInvestmentOutstanding is the part of the seller's investment not yet recovered.
func (b *Batch) SellerInvestmentOutstanding() decimal.Decimal {
	outstanding := b.SellerInvestment.Sub(b.SellerInvestmentRecovered)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

type SubBatch struct {
	BaseModel
	BatchID           uuid.UUID     `json:"batch_id" gorm:"type:uuid;not null;index"`
	Sequence          int           `json:"sequence" gorm:"not null"`
	AssignedQuantity  int           `json:"assigned_quantity" gorm:"not null"`
	DeliveredQuantity int           `json:"delivered_quantity" gorm:"not null;default:0"`
	CurrentQuantity   int           `json:"current_quantity" gorm:"not null;default:0"`
	Shortfall         int           `json:"shortfall" gorm:"not null;default:0"`
	State             SubBatchState `json:"state" gorm:"type:varchar(20);default:'PENDING';index"`
	ReleasedAt        *time.Time    `json:"released_at"`
	SettledAt         *time.Time    `json:"settled_at"`
	Version           int           `json:"version" gorm:"not null;default:1"`

	// Relationships
	Batch *Batch `json:"batch,omitempty" gorm:"foreignKey:BatchID"`
}

// RemainingRatio is current/delivered, or 1 when nothing was delivered yet.
func (sb *SubBatch) RemainingRatio() decimal.Decimal {
	if sb.DeliveredQuantity <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(sb.CurrentQuantity)).
		Div(decimal.NewFromInt(int64(sb.DeliveredQuantity)))
}
