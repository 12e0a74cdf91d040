package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/batch-settlement/internal/models"
)

type TriggerServiceTestSuite struct {
	serviceSuite
	seller *models.Seller
	batch  *models.Batch
	sub    models.SubBatch
}

func TestTriggerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TriggerServiceTestSuite))
}

func (s *TriggerServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.produce(100)
	s.seller = s.newSeller("Katia", models.SellerTierPartner, nil)
	s.batch = s.newBatch(s.seller.ID, 100, 3)
	s.sub = s.batch.SubBatches[0]
}

func (s *TriggerServiceTestSuite) TestRepeatedScansCreateOneSettlement() {
	s.disableAutoCreate()
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 40, nil)
	s.EqualValues(0, s.countSettlements(s.sub.ID))

	eligible, err := s.svc.Trigger.ListEligible(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(eligible, 1)
	s.Equal(s.sub.ID, eligible[0].ID)
	s.Equal(TriggerRevenue, eligible[0].Eligibility.Trigger)

	// scans only act when auto-create is on
	report, err := s.svc.Trigger.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Eligible)
	s.Empty(report.Created)

	s.cfg.Settlement.AutoCreate = true
	s.rebuild()

	report, err = s.svc.Trigger.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Scanned)
	s.Require().Len(report.Created, 1)
	s.Equal(s.openSettlement(s.sub.ID).ID, report.Created[0])

	report, err = s.svc.Trigger.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(report.Scanned)
	s.Empty(report.Created)
	s.EqualValues(1, s.countSettlements(s.sub.ID))

	eligible, err = s.svc.Trigger.ListEligible(s.ctx)
	s.Require().NoError(err)
	s.Empty(eligible)
}

func (s *TriggerServiceTestSuite) TestCheckSkipsSettlingSubBatch() {
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 40, nil)
	s.EqualValues(1, s.countSettlements(s.sub.ID))

	result, err := s.svc.Trigger.CheckSubBatch(s.ctx, s.sub.ID)
	s.Require().NoError(err)
	s.True(result.Skipped)
	s.False(result.Eligible)
	s.Nil(result.SettlementID)
	s.EqualValues(1, s.countSettlements(s.sub.ID))
}

func (s *TriggerServiceTestSuite) TestRevenueShortAdvisory() {
	price := d(100)
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeWholesale, 35, &price)

	result, err := s.svc.Trigger.CheckSubBatch(s.ctx, s.sub.ID)
	s.Require().NoError(err)
	s.False(result.Eligible)
	s.True(result.Advisory)
	s.assertAmount(3500, result.Revenue, "revenue")
	s.assertAmount(60000, result.Threshold, "threshold")
	s.EqualValues(0, s.countSettlements(s.sub.ID))

	alerts := s.alerts(models.AlertTypeRevenueShort)
	s.Require().Len(alerts, 1)
	s.Equal(s.sub.ID, *alerts[0].RelatedResourceID)
}

func (s *TriggerServiceTestSuite) TestStockRatioTriggerOnLaterSubBatch() {
	s.disableAutoCreate()
	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 40, nil)
	st, err := s.svc.Settlements.CreateSettlement(s.ctx, &CreateSettlementRequest{SubBatchID: s.sub.ID})
	s.Require().NoError(err)
	s.confirm(st.ID, 60000)

	sub2 := s.batch.SubBatches[1]
	s.sell(s.seller.ID, sub2.ID, models.SaleTypeStandard, 26, nil)

	result, err := s.svc.Trigger.CheckSubBatch(s.ctx, sub2.ID)
	s.Require().NoError(err)
	s.Equal(TriggerStockRatio, result.Trigger)
	s.Equal(10, result.TriggerPct)
	s.False(result.Eligible)

	s.sell(s.seller.ID, sub2.ID, models.SaleTypeStandard, 1, nil)
	result, err = s.svc.Trigger.CheckSubBatch(s.ctx, sub2.ID)
	s.Require().NoError(err)
	s.True(result.Eligible)
}

func (s *TriggerServiceTestSuite) TestRunOnceHonoursCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.svc.Trigger.RunOnce(ctx)
	s.Error(err)
}

func (s *TriggerServiceTestSuite) TestScannerCreatesSettlement() {
	s.cfg.Settlement.ScanInterval = 10 * time.Millisecond
	s.rebuild()
	s.svc.Sales.SetChecker(nil)

	s.sell(s.seller.ID, s.sub.ID, models.SaleTypeStandard, 40, nil)
	s.EqualValues(0, s.countSettlements(s.sub.ID))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.svc.Trigger.Start(ctx)
		close(done)
	}()

	s.Eventually(func() bool {
		var n int64
		if err := s.db.Model(&models.Settlement{}).Where("sub_batch_id = ?", s.sub.ID).Count(&n).Error; err != nil {
			return false
		}
		return n == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	s.EqualValues(1, s.countSettlements(s.sub.ID))
}
