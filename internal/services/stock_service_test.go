package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/batch-settlement/internal/models"
)

type StockServiceTestSuite struct {
	serviceSuite
}

func TestStockServiceTestSuite(t *testing.T) {
	suite.Run(t, new(StockServiceTestSuite))
}

func (s *StockServiceTestSuite) TestProductionAndAdjustment() {
	s.produce(50)

	movement, err := s.svc.Stock.AdjustStock(s.ctx, &AdjustStockRequest{Delta: -5, Reason: "damaged units"})
	s.Require().NoError(err)
	s.Equal(45, movement.ResultingBalance)

	_, err = s.svc.Stock.AdjustStock(s.ctx, &AdjustStockRequest{Delta: -46, Reason: "count correction"})
	s.Equal(KindInsufficientStock, KindOf(err))

	_, err = s.svc.Stock.AdjustStock(s.ctx, &AdjustStockRequest{Delta: 3})
	s.Equal(KindValidation, KindOf(err))

	status, err := s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(45, status.Available)
	s.Equal(50, status.TotalProduced)
	s.assertAmount(1200, status.UnitCost, "unit cost")

	production := models.MovementTypeProduction
	result, err := s.svc.Stock.ListMovements(s.ctx, &MovementFilter{Type: &production})
	s.Require().NoError(err)
	s.EqualValues(1, result.Total)
}

// Releasing without enough stock is tolerated and reported.
func (s *StockServiceTestSuite) TestReleaseShortfallRaisesAlerts() {
	s.produce(30)
	seller := s.newSeller("Luis", models.SellerTierPartner, nil)
	batch := s.newBatch(seller.ID, 100, 3)

	sub := batch.SubBatches[0]
	s.Equal(models.SubBatchStateReleased, sub.State)
	s.Equal(40, sub.DeliveredQuantity)
	s.Equal(40, sub.CurrentQuantity)
	s.Equal(10, sub.Shortfall)

	alerts := s.alerts(models.AlertTypeStockDeficit)
	s.Require().Len(alerts, 1)
	s.Equal(sub.ID, *alerts[0].RelatedResourceID)
	s.Equal("high", alerts[0].Priority)

	var reservation models.StockMovement
	s.Require().NoError(s.db.Where("type = ?", models.MovementTypeReservation).First(&reservation).Error)
	s.Equal(40, reservation.Quantity)
	s.Equal(30, reservation.Fulfilled)
	s.Equal(10, reservation.Shortfall)

	status, err := s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, status.Available)
	s.Equal(30, status.Reserved)
	s.Equal(60, status.PendingDemand)
	s.Equal(60, status.Deficit)

	report, err := s.svc.Trigger.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(report.Stock)
	s.Equal(60, report.Stock.Deficit)
	s.Len(s.alerts(models.AlertTypeStockDeficit), 2)

	// an unread alert is not raised twice
	_, err = s.svc.Trigger.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Len(s.alerts(models.AlertTypeStockDeficit), 2)

	// sales still go through on the promised units
	s.sell(seller.ID, sub.ID, models.SaleTypeStandard, 35, nil)
	status, err = s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, status.Reserved)
	s.Equal(30, status.Delivered)
}

func (s *StockServiceTestSuite) TestDeficitAgainstPendingSubBatches() {
	s.produce(100)
	seller := s.newSeller("Marta", models.SellerTierPartner, nil)
	s.newBatch(seller.ID, 100, 3)
	s.newBatch(seller.ID, 100, 3)

	deficit, err := s.svc.Stock.Deficit(s.ctx)
	s.Require().NoError(err)
	// 20 units left after two releases of 40, 120 units pending
	s.Equal(100, deficit)
}
