// internal/models/stock.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockLedgerID is the primary key of the single central producer ledger row.
const StockLedgerID = 1

type StockLedger struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Available     int             `json:"available" gorm:"not null;default:0"`
	Reserved      int             `json:"reserved" gorm:"not null;default:0"`
	Delivered     int             `json:"delivered" gorm:"not null;default:0"`
	TotalProduced int             `json:"total_produced" gorm:"not null;default:0"`
	UnitCost      decimal.Decimal `json:"unit_cost" gorm:"type:decimal(14,2);not null;default:0"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockMovement rows are append-only.
type StockMovement struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	Type             MovementType    `json:"type" gorm:"type:varchar(20);not null;index"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	Fulfilled        int             `json:"fulfilled" gorm:"not null;default:0"`
	Shortfall        int             `json:"shortfall" gorm:"not null;default:0"`
	ResultingBalance int             `json:"resulting_balance" gorm:"not null"`
	UnitCost         decimal.Decimal `json:"unit_cost" gorm:"type:decimal(14,2);not null;default:0"`
	SubBatchID       *uuid.UUID      `json:"sub_batch_id" gorm:"type:uuid;index"`
	SaleID           *uuid.UUID      `json:"sale_id" gorm:"type:uuid;index"`
	Reason           string          `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time       `json:"created_at" gorm:"index"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
