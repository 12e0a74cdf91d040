// internal/models/sale.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Sale struct {
	BaseModel
	SellerID        uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	SubBatchID      uuid.UUID       `json:"sub_batch_id" gorm:"type:uuid;not null;index"`
	Type            SaleType        `json:"type" gorm:"type:varchar(20);not null;index"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null"`
	TotalPrice      decimal.Decimal `json:"total_price" gorm:"type:decimal(14,2);not null"`
	Status          SaleStatus      `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	RejectedAt      *time.Time      `json:"rejected_at"`
	RejectionReason string          `json:"rejection_reason,omitempty" gorm:"type:text"`
	Notes           string          `json:"notes,omitempty" gorm:"type:text"`

	// Relationships
	SubBatch *SubBatch `json:"sub_batch,omitempty" gorm:"foreignKey:SubBatchID"`
}
