// internal/services/seller_directory.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/calculator"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/utils"
)

// SellerDirectory is the read side of the seller/recruiter records.
type SellerDirectory struct {
	db *gorm.DB
}

type CreateSellerRequest struct {
	Name        string            `json:"name" validate:"required,min=2,max=120"`
	Email       string            `json:"email,omitempty" validate:"omitempty,email"`
	Tier        models.SellerTier `json:"tier" validate:"required,seller_tier"`
	RecruiterID *uuid.UUID        `json:"recruiter_id,omitempty"`
}

func NewSellerDirectory(db *gorm.DB) *SellerDirectory {
	return &SellerDirectory{db: db}
}

func (s *SellerDirectory) Get(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := s.db.WithContext(ctx).First(&seller, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("seller", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &seller, nil
}

func (s *SellerDirectory) Root(ctx context.Context) (*models.Seller, error) {
	var seller models.Seller
	if err := s.db.WithContext(ctx).Where("is_root = ?", true).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DomainError{Kind: KindNotFound, Message: "root financier not configured"}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &seller, nil
}

// FindNode adapts a seller row for the cascade distributor.
func (s *SellerDirectory) FindNode(ctx context.Context, id uuid.UUID) (*calculator.ChainNode, error) {
	seller, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &calculator.ChainNode{
		ID:          seller.ID,
		Name:        seller.Name,
		RecruiterID: seller.RecruiterID,
		IsRoot:      seller.IsRoot,
	}, nil
}

// Register adds a seller to the directory; sellers normally arrive from the identity system.
func (s *SellerDirectory) Register(ctx context.Context, req *CreateSellerRequest) (*models.Seller, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}
	if req.Tier == models.SellerTierOrganizer {
		return nil, &DomainError{Kind: KindValidation, Message: "the organizer tier is reserved for the root financier"}
	}

	if req.RecruiterID != nil {
		if _, err := s.Get(ctx, *req.RecruiterID); err != nil {
			return nil, err
		}
	} else {
		root, err := s.Root(ctx)
		if err != nil {
			return nil, err
		}
		req.RecruiterID = &root.ID
	}

	seller := &models.Seller{
		Name:        req.Name,
		Email:       req.Email,
		Tier:        req.Tier,
		RecruiterID: req.RecruiterID,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(seller).Error; err != nil {
		return nil, fmt.Errorf("failed to create seller: %w", err)
	}
	return seller, nil
}

func (s *SellerDirectory) List(ctx context.Context, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Seller{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sellers: %w", err)
	}

	var sellers []models.Seller
	query = utils.ApplySort(query, params, []string{"created_at", "name", "tier"})
	if err := utils.ApplyPagination(query, params).Find(&sellers).Error; err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}

	result := utils.CreatePaginationResult(sellers, total, params)
	return &result, nil
}
