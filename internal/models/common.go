// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the surrogate key so rows are portable across postgres and sqlite.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type SellerTier string

const (
	SellerTierPartner   SellerTier = "PARTNER"
	SellerTierNetwork   SellerTier = "NETWORK"
	SellerTierOrganizer SellerTier = "ORGANIZER"
)

type BusinessModel string

const (
	BusinessModelDirectSplit  BusinessModel = "DIRECT_SPLIT"
	BusinessModelCascadeSplit BusinessModel = "CASCADE_SPLIT"
)

// BusinessModelForTier derives the profit split model from a seller tier.
func BusinessModelForTier(tier SellerTier) (BusinessModel, bool) {
	switch tier {
	case SellerTierPartner:
		return BusinessModelDirectSplit, true
	case SellerTierNetwork:
		return BusinessModelCascadeSplit, true
	default:
		return "", false
	}
}

type BatchState string

const (
	BatchStateActive    BatchState = "ACTIVE"
	BatchStateCompleted BatchState = "COMPLETED"
	BatchStateCancelled BatchState = "CANCELLED"
)

type SubBatchState string

const (
	SubBatchStatePending  SubBatchState = "PENDING"
	SubBatchStateReleased SubBatchState = "RELEASED"
	SubBatchStateSettling SubBatchState = "SETTLING"
	SubBatchStateSettled  SubBatchState = "SETTLED"
)

type SaleType string

const (
	SaleTypeStandard  SaleType = "STANDARD"
	SaleTypePromo     SaleType = "PROMO"
	SaleTypeNoExtra   SaleType = "NO_EXTRA"
	SaleTypeGift      SaleType = "GIFT"
	SaleTypeWholesale SaleType = "WHOLESALE"
)

// Valid reports whether t is one of the known sale types.
func (t SaleType) Valid() bool {
	switch t {
	case SaleTypeStandard, SaleTypePromo, SaleTypeNoExtra, SaleTypeGift, SaleTypeWholesale:
		return true
	}
	return false
}

type SaleStatus string

const (
	SaleStatusPending  SaleStatus = "PENDING"
	SaleStatusApproved SaleStatus = "APPROVED"
	SaleStatusRejected SaleStatus = "REJECTED"
)

type SettlementType string

const (
	SettlementTypeInvestment SettlementType = "INVESTMENT"
	SettlementTypeProfit     SettlementType = "PROFIT"
)

type SettlementStatus string

const (
	SettlementStatusPending    SettlementStatus = "PENDING"
	SettlementStatusInProgress SettlementStatus = "IN_PROGRESS"
	SettlementStatusSuccessful SettlementStatus = "SUCCESSFUL"
	SettlementStatusCancelled  SettlementStatus = "CANCELLED"
)

// Open reports whether the settlement still blocks a new one for its sub-batch.
func (s SettlementStatus) Open() bool {
	return s == SettlementStatusPending || s == SettlementStatusInProgress
}

type MovementType string

const (
	MovementTypeProduction  MovementType = "PRODUCTION"
	MovementTypeReservation MovementType = "RESERVATION"
	MovementTypeDelivery    MovementType = "DELIVERY"
	MovementTypeReturn      MovementType = "RETURN"
	MovementTypeAdjustment  MovementType = "ADJUSTMENT"
)

type AlertType string

const (
	AlertTypeStockDeficit      AlertType = "STOCK_DEFICIT"
	AlertTypeRevenueShort      AlertType = "REVENUE_SHORT"
	AlertTypeSettlementCreated AlertType = "SETTLEMENT_CREATED"
)

type AlertStatus string

const (
	AlertStatusUnread       AlertStatus = "unread"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
)
