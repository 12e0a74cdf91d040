// internal/services/cost_config_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/models"
)

// CostConfigService owns the pricing/cost singleton row and caches it.
type CostConfigService struct {
	db *gorm.DB

	mu     sync.RWMutex
	cached *models.CostConfig
}

type UpdateCostConfigRequest struct {
	RealCostRatio            *decimal.Decimal `json:"real_cost_ratio,omitempty"`
	FinancierInvestmentShare *decimal.Decimal `json:"financier_investment_share,omitempty"`
	StandardUnitPrice        *decimal.Decimal `json:"standard_unit_price,omitempty"`
	PromoPairPrice           *decimal.Decimal `json:"promo_pair_price,omitempty"`
	NoExtraUnitPrice         *decimal.Decimal `json:"no_extra_unit_price,omitempty"`
	GiftQuotaPct             *decimal.Decimal `json:"gift_quota_pct,omitempty"`
}

func NewCostConfigService(db *gorm.DB) *CostConfigService {
	return &CostConfigService{db: db}
}

func (s *CostConfigService) Get(ctx context.Context) (*models.CostConfig, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		copied := *cached
		return &copied, nil
	}

	var cfg models.CostConfig
	if err := s.db.WithContext(ctx).First(&cfg, models.CostConfigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DomainError{Kind: KindNotFound, Message: "cost configuration not initialized"}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.mu.Lock()
	s.cached = &cfg
	s.mu.Unlock()

	copied := cfg
	return &copied, nil
}

func (s *CostConfigService) Update(ctx context.Context, operatorID uuid.UUID, req *UpdateCostConfigRequest) (*models.CostConfig, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	apply := func(dst *decimal.Decimal, src *decimal.Decimal, limit *decimal.Decimal, field string) error {
		if src == nil {
			return nil
		}
		if src.IsNegative() || (limit != nil && src.GreaterThan(*limit)) {
			return &DomainError{Kind: KindValidation, Message: fmt.Sprintf("%s out of range", field)}
		}
		*dst = *src
		return nil
	}

	hundred := decimal.NewFromInt(100)
	checks := []error{
		apply(&cfg.RealCostRatio, req.RealCostRatio, &one, "real_cost_ratio"),
		apply(&cfg.FinancierInvestmentShare, req.FinancierInvestmentShare, &one, "financier_investment_share"),
		apply(&cfg.StandardUnitPrice, req.StandardUnitPrice, nil, "standard_unit_price"),
		apply(&cfg.PromoPairPrice, req.PromoPairPrice, nil, "promo_pair_price"),
		apply(&cfg.NoExtraUnitPrice, req.NoExtraUnitPrice, nil, "no_extra_unit_price"),
		apply(&cfg.GiftQuotaPct, req.GiftQuotaPct, &hundred, "gift_quota_pct"),
	}
	if err := errors.Join(checks...); err != nil {
		return nil, err
	}
	cfg.UpdatedBy = &operatorID

	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to update cost config: %w", err)
	}

	s.mu.Lock()
	s.cached = cfg
	s.mu.Unlock()

	copied := *cfg
	return &copied, nil
}

// Invalidate drops the cached row, forcing the next Get to reload it.
func (s *CostConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// UnitPrice applies the pricing rule of a sale type. Wholesale needs the caller's price.
func (s *CostConfigService) UnitPrice(cfg *models.CostConfig, saleType models.SaleType, quantity int, wholesale *decimal.Decimal) (unit, total decimal.Decimal, err error) {
	qty := decimal.NewFromInt(int64(quantity))

	switch saleType {
	case models.SaleTypeStandard:
		unit = cfg.StandardUnitPrice
	case models.SaleTypePromo:
		if quantity%2 != 0 {
			return unit, total, &DomainError{
				Kind:    KindInvalidPromoQuantity,
				Message: fmt.Sprintf("promo sales come in pairs, got %d units", quantity),
			}
		}
		unit = cfg.PromoPairPrice.Div(decimal.NewFromInt(2))
		total = cfg.PromoPairPrice.Mul(decimal.NewFromInt(int64(quantity / 2)))
		return unit, total, nil
	case models.SaleTypeNoExtra:
		unit = cfg.NoExtraUnitPrice
	case models.SaleTypeGift:
		return decimal.Zero, decimal.Zero, nil
	case models.SaleTypeWholesale:
		if wholesale == nil || !wholesale.IsPositive() {
			return unit, total, &DomainError{Kind: KindMissingPrice, Message: "wholesale sales need a positive unit price"}
		}
		unit = *wholesale
	default:
		return unit, total, &DomainError{Kind: KindValidation, Message: fmt.Sprintf("unknown sale type %q", saleType)}
	}

	return unit, unit.Mul(qty), nil
}
