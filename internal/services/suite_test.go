package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/events"
	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/testutil"
)

// serviceSuite gives every test a fresh in-memory database and service graph.
type serviceSuite struct {
	suite.Suite
	ctx       context.Context
	cfg       *config.Config
	db        *gorm.DB
	publisher *events.MemoryPublisher
	svc       *Services
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = testutil.Config()
	s.db = testutil.NewDB(s.T(), s.cfg)
	s.rebuild()
}

// rebuild rewires the services after a config change.
func (s *serviceSuite) rebuild() {
	s.publisher = events.NewMemoryPublisher()
	s.svc = NewServices(s.db, s.cfg, s.publisher)
}

func (s *serviceSuite) disableAutoCreate() {
	s.cfg.Settlement.AutoCreate = false
	s.rebuild()
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (s *serviceSuite) assertAmount(expected int64, actual decimal.Decimal, field string) {
	s.Truef(actual.Equal(d(expected)), "%s: expected %d, got %s", field, expected, actual.String())
}

func (s *serviceSuite) newSeller(name string, tier models.SellerTier, recruiter *uuid.UUID) *models.Seller {
	seller, err := s.svc.Sellers.Register(s.ctx, &CreateSellerRequest{
		Name:        name,
		Tier:        tier,
		RecruiterID: recruiter,
	})
	s.Require().NoError(err)
	return seller
}

func (s *serviceSuite) produce(quantity int) {
	_, err := s.svc.Stock.RegisterProduction(s.ctx, &ProductionRequest{
		Quantity: quantity,
		UnitCost: d(1200),
		Reason:   "test run",
	})
	s.Require().NoError(err)
}

// newBatch creates a batch at a perceived unit cost of 2400, so the financier
// investment is quantity * 600.
func (s *serviceSuite) newBatch(sellerID uuid.UUID, quantity, subBatches int) *models.Batch {
	batch, err := s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
		SellerID:          sellerID,
		Quantity:          quantity,
		PerceivedUnitCost: d(2400),
		SubBatchCount:     subBatches,
	})
	s.Require().NoError(err)
	s.Require().Len(batch.SubBatches, subBatches)
	return batch
}

func (s *serviceSuite) register(sellerID, subBatchID uuid.UUID, saleType models.SaleType, quantity int, unitPrice *decimal.Decimal) *models.Sale {
	sale, err := s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID:   sellerID,
		SubBatchID: &subBatchID,
		Type:       saleType,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
	})
	s.Require().NoError(err)
	return sale
}

// sell registers and approves a sale.
func (s *serviceSuite) sell(sellerID, subBatchID uuid.UUID, saleType models.SaleType, quantity int, unitPrice *decimal.Decimal) *models.Sale {
	sale := s.register(sellerID, subBatchID, saleType, quantity, unitPrice)
	approved, err := s.svc.Sales.ApproveSale(s.ctx, sale.ID)
	s.Require().NoError(err)
	return approved
}

func (s *serviceSuite) subBatch(id uuid.UUID) *models.SubBatch {
	sub, err := s.svc.Batches.GetSubBatch(s.ctx, id)
	s.Require().NoError(err)
	return sub
}

func (s *serviceSuite) batch(id uuid.UUID) *models.Batch {
	batch, err := s.svc.Batches.GetBatch(s.ctx, id)
	s.Require().NoError(err)
	return batch
}

// openSettlement returns the pending or in-progress settlement of a sub-batch.
func (s *serviceSuite) openSettlement(subBatchID uuid.UUID) *models.Settlement {
	var st models.Settlement
	err := s.db.Where("sub_batch_id = ? AND status IN ?", subBatchID,
		[]models.SettlementStatus{models.SettlementStatusPending, models.SettlementStatusInProgress}).
		First(&st).Error
	s.Require().NoError(err)
	return &st
}

func (s *serviceSuite) countSettlements(subBatchID uuid.UUID) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Settlement{}).Where("sub_batch_id = ?", subBatchID).Count(&n).Error)
	return n
}

func (s *serviceSuite) confirm(id uuid.UUID, received int64) *models.Settlement {
	st, err := s.svc.Settlements.ConfirmSettlement(s.ctx, id, &ConfirmSettlementRequest{AmountReceived: d(received)})
	s.Require().NoError(err)
	return st
}

func (s *serviceSuite) alerts(alertType models.AlertType) []models.Alert {
	var alerts []models.Alert
	s.Require().NoError(s.db.Where("type = ?", alertType).Find(&alerts).Error)
	return alerts
}
