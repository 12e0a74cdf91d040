// internal/models/settlement.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Settlement struct {
	BaseModel
	Reference                string           `json:"reference" gorm:"size:32;uniqueIndex"`
	BatchID                  uuid.UUID        `json:"batch_id" gorm:"type:uuid;not null;index"`
	SubBatchID               uuid.UUID        `json:"sub_batch_id" gorm:"type:uuid;not null;index"`
	Sequence                 int              `json:"sequence" gorm:"not null"`
	Type                     SettlementType   `json:"type" gorm:"type:varchar(20);not null;index"`
	Branch                   string           `json:"branch" gorm:"size:40;not null"`
	Status                   SettlementStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	Forced                   bool             `json:"forced" gorm:"default:false"`
	ShortfallAccepted        bool             `json:"shortfall_accepted" gorm:"default:false"`
	Revenue                  decimal.Decimal  `json:"revenue" gorm:"type:decimal(14,2);not null"`
	AvailableAmount          decimal.Decimal  `json:"available_amount" gorm:"type:decimal(14,2);not null"`
	ExpectedAmount           decimal.Decimal  `json:"expected_amount" gorm:"type:decimal(14,2);not null"`
	ReceivedAmount           *decimal.Decimal `json:"received_amount" gorm:"type:decimal(14,2)"`
	SellerAmount             decimal.Decimal  `json:"seller_amount" gorm:"type:decimal(14,2);not null"`
	FinancierRecovery        decimal.Decimal  `json:"financier_recovery" gorm:"type:decimal(14,2);not null"`
	SellerInvestmentRecovery decimal.Decimal  `json:"seller_investment_recovery" gorm:"type:decimal(14,2);not null"`
	SellerProfit             decimal.Decimal  `json:"seller_profit" gorm:"type:decimal(14,2);not null"`
	UpwardProfit             decimal.Decimal  `json:"upward_profit" gorm:"type:decimal(14,2);not null"`
	SurplusIn                decimal.Decimal  `json:"surplus_in" gorm:"type:decimal(14,2);not null"`
	SurplusOut               decimal.Decimal  `json:"surplus_out" gorm:"type:decimal(14,2);not null"`
	Breakdown                Breakdown        `json:"breakdown" gorm:"type:jsonb"`
	StartedAt                *time.Time       `json:"started_at"`
	ConfirmedAt              *time.Time       `json:"confirmed_at"`
	CancelledAt              *time.Time       `json:"cancelled_at"`
	ConfirmationNote         string           `json:"confirmation_note,omitempty" gorm:"type:text"`

	// Relationships
	SubBatch *SubBatch `json:"sub_batch,omitempty" gorm:"foreignKey:SubBatchID"`
}

// BreakdownStep is one line of the human-checkable calculation trail.
type BreakdownStep struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// CascadeShare is the informational share attributed to one recruiter level.
type CascadeShare struct {
	Level    int             `json:"level"`
	SellerID uuid.UUID       `json:"seller_id"`
	Name     string          `json:"name,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	IsRoot   bool            `json:"is_root"`
}

// Breakdown is stored as a JSON document next to the settlement row.
type Breakdown struct {
	Steps   []BreakdownStep `json:"steps"`
	Cascade []CascadeShare  `json:"cascade,omitempty"`
}

func (b Breakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *Breakdown) Scan(value interface{}) error {
	if value == nil {
		*b = Breakdown{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("unsupported breakdown type %T", value)
	}
}
