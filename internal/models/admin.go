// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// CostConfigID is the primary key of the single pricing/cost configuration row.
const CostConfigID = 1

type CostConfig struct {
	ID                       uint            `json:"id" gorm:"primaryKey"`
	RealCostRatio            decimal.Decimal `json:"real_cost_ratio" gorm:"type:decimal(6,4);not null"`
	FinancierInvestmentShare decimal.Decimal `json:"financier_investment_share" gorm:"type:decimal(6,4);not null"`
	StandardUnitPrice        decimal.Decimal `json:"standard_unit_price" gorm:"type:decimal(14,2);not null"`
	PromoPairPrice           decimal.Decimal `json:"promo_pair_price" gorm:"type:decimal(14,2);not null"`
	NoExtraUnitPrice         decimal.Decimal `json:"no_extra_unit_price" gorm:"type:decimal(14,2);not null"`
	GiftQuotaPct             decimal.Decimal `json:"gift_quota_pct" gorm:"type:decimal(6,2);not null"`
	UpdatedBy                *uuid.UUID      `json:"updated_by" gorm:"type:uuid"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type OperatorRole string

const (
	OperatorRoleAdmin    OperatorRole = "admin"
	OperatorRoleOperator OperatorRole = "operator"
)

// Operator is a back-office account allowed to approve sales and confirm settlements.
type Operator struct {
	BaseModel
	Username     string       `json:"username" gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string       `json:"-" gorm:"size:255;not null"`
	Role         OperatorRole `json:"role" gorm:"type:varchar(20);not null;default:'operator'"`
	Active       bool         `json:"active" gorm:"default:true"`
	LastLoginAt  *time.Time   `json:"last_login_at"`
}

func (o *Operator) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	o.PasswordHash = string(hashedPassword)
	return nil
}

func (o *Operator) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password))
}

type AuditLog struct {
	BaseModel
	OperatorID   *uuid.UUID `json:"operator_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
	StatusCode   int        `json:"status_code"`
}

// Alert surfaces tolerated conditions (stock deficit, revenue short) to operators.
type Alert struct {
	BaseModel
	Type                AlertType   `json:"type" gorm:"type:varchar(50);not null;index"`
	Title               string      `json:"title" gorm:"size:255;not null"`
	Message             string      `json:"message" gorm:"type:text;not null"`
	Priority            string      `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	Status              AlertStatus `json:"status" gorm:"type:varchar(20);default:'unread';index"`
	RelatedResourceType string      `json:"related_resource_type,omitempty" gorm:"size:50"`
	RelatedResourceID   *uuid.UUID  `json:"related_resource_id" gorm:"type:uuid;index"`
	Details             JSONB       `json:"details" gorm:"type:jsonb"`
	ReadAt              *time.Time  `json:"read_at"`
}
