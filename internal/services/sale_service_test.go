package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/batch-settlement/internal/models"
)

type SaleServiceTestSuite struct {
	serviceSuite
	seller *models.Seller
	batch  *models.Batch
	sub    models.SubBatch
}

func TestSaleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SaleServiceTestSuite))
}

func (s *SaleServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.produce(100)
	s.seller = s.newSeller("Ines", models.SellerTierPartner, nil)
	s.batch = s.newBatch(s.seller.ID, 100, 3)
	s.sub = s.batch.SubBatches[0]
}

func (s *SaleServiceTestSuite) TestPricingPerSaleType() {
	standard := s.register(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 2, nil)
	s.assertAmount(2400, standard.UnitPrice, "standard unit")
	s.assertAmount(4800, standard.TotalPrice, "standard total")

	promo := s.register(s.seller.ID, s.sub.ID, models.SaleTypePromo, 4, nil)
	s.assertAmount(2000, promo.UnitPrice, "promo unit")
	s.assertAmount(8000, promo.TotalPrice, "promo total")

	noExtra := s.register(s.seller.ID, s.sub.ID, models.SaleTypeNoExtra, 3, nil)
	s.assertAmount(6000, noExtra.TotalPrice, "no-extra total")

	gift := s.register(s.seller.ID, s.sub.ID, models.SaleTypeGift, 1, nil)
	s.assertAmount(0, gift.TotalPrice, "gift total")

	price := d(1500)
	wholesale := s.register(s.seller.ID, s.sub.ID, models.SaleTypeWholesale, 5, &price)
	s.assertAmount(7500, wholesale.TotalPrice, "wholesale total")

	s.Equal(40-2-4-3-1-5, s.subBatch(s.sub.ID).CurrentQuantity)
	s.Equal(models.SaleStatusPending, wholesale.Status)
}

func (s *SaleServiceTestSuite) TestRejectsInvalidSalesBeforeWriting() {
	cases := []struct {
		name     string
		req      RegisterSaleRequest
		expected ErrorKind
	}{
		{"odd promo", RegisterSaleRequest{Type: models.SaleTypePromo, Quantity: 3}, KindInvalidPromoQuantity},
		{"wholesale without price", RegisterSaleRequest{Type: models.SaleTypeWholesale, Quantity: 2}, KindMissingPrice},
		{"over current quantity", RegisterSaleRequest{Type: models.SaleTypeStandard, Quantity: 41}, KindInsufficientStock},
		{"unknown type", RegisterSaleRequest{Type: "BARTER", Quantity: 1}, KindValidation},
		{"zero quantity", RegisterSaleRequest{Type: models.SaleTypeStandard}, KindValidation},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := tc.req
			req.SellerID = s.seller.ID
			req.SubBatchID = &s.sub.ID

			_, err := s.svc.Sales.RegisterSale(s.ctx, &req)
			s.Require().Error(err)
			s.Equal(tc.expected, KindOf(err))
		})
	}

	var sales int64
	s.Require().NoError(s.db.Model(&models.Sale{}).Count(&sales).Error)
	s.Zero(sales)
	s.Equal(40, s.subBatch(s.sub.ID).CurrentQuantity)
}

func (s *SaleServiceTestSuite) TestGiftQuota() {
	// 8% of 40 delivered units
	s.Equal(3, GiftQuota(40, d(8)))

	s.register(s.seller.ID, s.sub.ID, models.SaleTypeGift, 2, nil)
	s.register(s.seller.ID, s.sub.ID, models.SaleTypeGift, 1, nil)

	_, err := s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID:   s.seller.ID,
		SubBatchID: &s.sub.ID,
		Type:       models.SaleTypeGift,
		Quantity:   1,
	})
	s.Equal(KindInvalidGiftQuota, KindOf(err))
}

func (s *SaleServiceTestSuite) TestRejectedGiftsFreeTheQuota() {
	gift := s.register(s.seller.ID, s.sub.ID, models.SaleTypeGift, 3, nil)
	_, err := s.svc.Sales.RejectSale(s.ctx, gift.ID, &RejectSaleRequest{Reason: "not delivered"})
	s.Require().NoError(err)

	s.register(s.seller.ID, s.sub.ID, models.SaleTypeGift, 3, nil)
}

func (s *SaleServiceTestSuite) TestRejectRestoresQuantity() {
	sale := s.register(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 10, nil)
	s.Equal(30, s.subBatch(s.sub.ID).CurrentQuantity)

	rejected, err := s.svc.Sales.RejectSale(s.ctx, sale.ID, &RejectSaleRequest{Reason: "customer returned"})
	s.Require().NoError(err)
	s.Equal(models.SaleStatusRejected, rejected.Status)
	s.Equal("customer returned", rejected.RejectionReason)
	s.Equal(40, s.subBatch(s.sub.ID).CurrentQuantity)

	_, err = s.svc.Sales.RejectSale(s.ctx, sale.ID, &RejectSaleRequest{Reason: "customer returned"})
	s.Equal(KindInvalidStateTransition, KindOf(err))

	_, err = s.svc.Sales.ApproveSale(s.ctx, sale.ID)
	s.Equal(KindInvalidStateTransition, KindOf(err))
}

func (s *SaleServiceTestSuite) TestApprovalDeliversStock() {
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 5, nil)

	stock, err := s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(35, stock.Reserved)
	s.Equal(5, stock.Delivered)

	var movements []models.StockMovement
	s.Require().NoError(s.db.Where("type = ?", models.MovementTypeDelivery).Find(&movements).Error)
	s.Require().Len(movements, 1)
	s.Equal(5, movements[0].Quantity)
	s.NotNil(movements[0].SaleID)
}

func (s *SaleServiceTestSuite) TestSubBatchResolvedFromSeller() {
	sale, err := s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID: s.seller.ID,
		Type:     models.SaleTypeStandard,
		Quantity: 1,
	})
	s.Require().NoError(err)
	s.Equal(s.sub.ID, sale.SubBatchID)

	other := s.newSeller("Other", models.SellerTierPartner, nil)
	_, err = s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID: other.ID,
		Type:     models.SaleTypeStandard,
		Quantity: 1,
	})
	s.Equal(KindInsufficientStock, KindOf(err))

	_, err = s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID:   other.ID,
		SubBatchID: &s.sub.ID,
		Type:       models.SaleTypeStandard,
		Quantity:   1,
	})
	s.Equal(KindValidation, KindOf(err))
}

func (s *SaleServiceTestSuite) TestSalesOnlyOnReleasedSubBatch() {
	pending := s.batch.SubBatches[1]
	_, err := s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
		SellerID:   s.seller.ID,
		SubBatchID: &pending.ID,
		Type:       models.SaleTypeStandard,
		Quantity:   1,
	})
	s.Require().Error(err)
	s.Equal(KindInvalidStateTransition, KindOf(err))

	var de *DomainError
	s.Require().ErrorAs(err, &de)
	s.Equal(string(models.SubBatchStatePending), de.CurrentState)
}

func (s *SaleServiceTestSuite) TestUnknownSale() {
	_, err := s.svc.Sales.ApproveSale(s.ctx, uuid.New())
	s.ErrorIs(err, ErrNotFound)
}

func (s *SaleServiceTestSuite) TestListSalesFilters() {
	s.register(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 1, nil)
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 1, nil)

	pending := models.SaleStatusPending
	result, err := s.svc.Sales.ListSales(s.ctx, &SaleFilter{SubBatchID: &s.sub.ID, Status: &pending})
	s.Require().NoError(err)
	s.EqualValues(1, result.Total)

	result, err = s.svc.Sales.ListSales(s.ctx, &SaleFilter{SellerID: &s.seller.ID})
	s.Require().NoError(err)
	s.EqualValues(2, result.Total)
}
