package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/testutil"
)

type AdminServiceTestSuite struct {
	serviceSuite
}

func TestAdminServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}

func (s *AdminServiceTestSuite) TestDashboardStats() {
	s.produce(100)
	seller := s.newSeller("Olga", models.SellerTierPartner, nil)
	batch := s.newBatch(seller.ID, 100, 3)
	s.register(seller.ID, batch.SubBatches[0].ID, models.SaleTypeStandard, 1, nil)
	s.sell(seller.ID, batch.SubBatches[0].ID, models.SaleTypeStandard, 39, nil)
	st := s.openSettlement(batch.SubBatches[0].ID)
	s.confirm(st.ID, 60000)

	stats, err := s.svc.Admin.GetDashboardStats(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, stats.BatchesByState[string(models.BatchStateActive)])
	s.EqualValues(1, stats.SubBatchesByState[string(models.SubBatchStateSettled)])
	s.EqualValues(1, stats.SettlementsByState[string(models.SettlementStatusSuccessful)])
	s.EqualValues(1, stats.PendingSales)
	s.assertAmount(93600, stats.ApprovedRevenue, "approved revenue")
	s.assertAmount(60000, stats.TotalUpward, "total upward")
	s.Require().NotNil(stats.Stock)
	s.Equal(30, stats.Stock.Available)
}

func (s *AdminServiceTestSuite) TestAuditTrail() {
	resp, err := s.svc.Auth.Login(s.ctx, &LoginRequest{Username: testutil.AdminUsername, Password: testutil.AdminPassword})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Admin.RecordAudit(s.ctx, AuditEntry{
		OperatorID:   &resp.Operator.ID,
		Action:       "POST /v1/batches",
		ResourceType: "batches",
		NewValues:    map[string]interface{}{"quantity": 100},
		StatusCode:   201,
	}))

	result, err := s.svc.Admin.ListAuditLogs(s.ctx, &AuditLogFilter{ResourceType: "batches"})
	s.Require().NoError(err)
	s.EqualValues(1, result.Total)
}

func (s *AdminServiceTestSuite) TestCostConfigUpdateReprices() {
	resp, err := s.svc.Auth.Login(s.ctx, &LoginRequest{Username: testutil.AdminUsername, Password: testutil.AdminPassword})
	s.Require().NoError(err)

	tooHigh := d(150)
	_, err = s.svc.Costs.Update(s.ctx, resp.Operator.ID, &UpdateCostConfigRequest{GiftQuotaPct: &tooHigh})
	s.Equal(KindValidation, KindOf(err))

	price := d(3000)
	updated, err := s.svc.Costs.Update(s.ctx, resp.Operator.ID, &UpdateCostConfigRequest{StandardUnitPrice: &price})
	s.Require().NoError(err)
	s.assertAmount(3000, updated.StandardUnitPrice, "standard price")
	s.Equal(resp.Operator.ID, *updated.UpdatedBy)

	s.produce(10)
	seller := s.newSeller("Pia", models.SellerTierPartner, nil)
	batch := s.newBatch(seller.ID, 10, 2)
	sale := s.register(seller.ID, batch.SubBatches[0].ID, models.SaleTypeStandard, 2, nil)
	s.assertAmount(6000, sale.TotalPrice, "total")

	s.svc.Costs.Invalidate()
	reloaded, err := s.svc.Costs.Get(s.ctx)
	s.Require().NoError(err)
	s.assertAmount(3000, reloaded.StandardUnitPrice, "reloaded price")
}
