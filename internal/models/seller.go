// internal/models/seller.go
package models

import (
	"github.com/google/uuid"
)

// Seller is a read-mostly directory entry; RecruiterID forms the upward chain.
type Seller struct {
	BaseModel
	Name        string     `json:"name" gorm:"size:120;not null"`
	Email       string     `json:"email,omitempty" gorm:"size:255;index"`
	Tier        SellerTier `json:"tier" gorm:"type:varchar(20);not null;index"`
	RecruiterID *uuid.UUID `json:"recruiter_id" gorm:"type:uuid;index"`
	IsRoot      bool       `json:"is_root" gorm:"default:false;index"`
	Active      bool       `json:"active" gorm:"default:true"`

	// Relationships
	Recruiter *Seller `json:"recruiter,omitempty" gorm:"foreignKey:RecruiterID"`
}
