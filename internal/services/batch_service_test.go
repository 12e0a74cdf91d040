package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	"github.com/javajoker/batch-settlement/internal/models"
)

type BatchServiceTestSuite struct {
	serviceSuite
	seller *models.Seller
}

func TestBatchServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BatchServiceTestSuite))
}

func (s *BatchServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.seller = s.newSeller("Julia", models.SellerTierPartner, nil)
}

func (s *BatchServiceTestSuite) TestCreateValidation() {
	_, err := s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{SellerID: s.seller.ID, Quantity: 10})
	s.Equal(KindValidation, KindOf(err))

	_, err = s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
		SellerID: s.seller.ID, Quantity: 10, PerceivedUnitCost: d(100), SubBatchCount: 4,
	})
	s.Equal(KindValidation, KindOf(err))

	_, err = s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
		SellerID: uuid.New(), Quantity: 10, PerceivedUnitCost: d(100),
	})
	s.Equal(KindNotFound, KindOf(err))

	root, err := s.svc.Sellers.Root(s.ctx)
	s.Require().NoError(err)
	_, err = s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
		SellerID: root.ID, Quantity: 10, PerceivedUnitCost: d(100),
	})
	s.Equal(KindValidation, KindOf(err))
}

func (s *BatchServiceTestSuite) TestDefaultSubBatchCount() {
	s.produce(10)
	batch, err := s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
		SellerID: s.seller.ID, Quantity: 10, PerceivedUnitCost: d(100),
	})
	s.Require().NoError(err)
	s.Equal(3, batch.SubBatchCount)
	s.Equal([]int{4, 3, 3}, []int{
		batch.SubBatches[0].AssignedQuantity,
		batch.SubBatches[1].AssignedQuantity,
		batch.SubBatches[2].AssignedQuantity,
	})
}

func (s *BatchServiceTestSuite) TestReleaseRequiresPreviousSettled() {
	s.produce(100)
	batch := s.newBatch(s.seller.ID, 100, 3)

	_, err := s.svc.Batches.ReleaseSubBatch(s.ctx, batch.SubBatches[1].ID)
	s.Require().Error(err)
	s.Equal(KindInvalidStateTransition, KindOf(err))

	var de *DomainError
	s.Require().ErrorAs(err, &de)
	s.Equal(string(models.SubBatchStateReleased), de.CurrentState)
	s.Equal(batch.SubBatches[0].ID.String(), de.Details["blocking_sub_batch_id"])

	_, err = s.svc.Batches.ReleaseSubBatch(s.ctx, batch.SubBatches[0].ID)
	s.Equal(KindInvalidStateTransition, KindOf(err))

	_, err = s.svc.Batches.ReleaseSubBatch(s.ctx, uuid.New())
	s.Equal(KindNotFound, KindOf(err))
}

// Only the first sub-batch is released at creation and the partition always covers the batch.
func (s *BatchServiceTestSuite) TestCreateReleasesOnlyFirst() {
	rapid.Check(s.T(), func(t *rapid.T) {
		quantity := rapid.IntRange(3, 500).Draw(t, "quantity")
		count := rapid.SampledFrom([]int{2, 3}).Draw(t, "count")

		batch, err := s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
			SellerID:          s.seller.ID,
			Quantity:          quantity,
			PerceivedUnitCost: d(100),
			SubBatchCount:     count,
		})
		require.NoError(t, err)
		require.Len(t, batch.SubBatches, count)

		total := 0
		for i, sub := range batch.SubBatches {
			require.Equal(t, i+1, sub.Sequence)
			total += sub.AssignedQuantity
			if i == 0 {
				require.Equal(t, models.SubBatchStateReleased, sub.State)
				require.Equal(t, sub.AssignedQuantity, sub.DeliveredQuantity)
			} else {
				require.Equal(t, models.SubBatchStatePending, sub.State)
				require.Zero(t, sub.DeliveredQuantity)
			}
		}
		require.Equal(t, quantity, total)
		require.True(t, batch.FinancierInvestment.Add(batch.SellerInvestment).
			Equal(batch.PerceivedInvestment.Div(d(2))))
	})
}

func (s *BatchServiceTestSuite) TestCancelBatchReturnsStock() {
	s.produce(100)
	batch := s.newBatch(s.seller.ID, 100, 3)

	stock, err := s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(60, stock.Available)

	cancelled, err := s.svc.Batches.CancelBatch(s.ctx, batch.ID, &CancelBatchRequest{Reason: "seller withdrew"})
	s.Require().NoError(err)
	s.Equal(models.BatchStateCancelled, cancelled.State)
	s.NotNil(cancelled.CancelledAt)

	stock, err = s.svc.Stock.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(100, stock.Available)
	s.Equal(0, stock.Reserved)
	s.Equal(0, stock.PendingDemand)

	_, err = s.svc.Batches.CancelBatch(s.ctx, batch.ID, &CancelBatchRequest{Reason: "seller withdrew"})
	s.Equal(KindInvalidStateTransition, KindOf(err))
}

func (s *BatchServiceTestSuite) TestCancelBatchWithSalesRefused() {
	s.produce(100)
	batch := s.newBatch(s.seller.ID, 100, 3)
	s.register(s.seller.ID, batch.SubBatches[0].ID, models.SaleTypeStandard, 1, nil)

	_, err := s.svc.Batches.CancelBatch(s.ctx, batch.ID, &CancelBatchRequest{Reason: "seller withdrew"})
	s.Equal(KindInvalidStateTransition, KindOf(err))
	s.Equal(models.BatchStateActive, s.batch(batch.ID).State)
}

func (s *BatchServiceTestSuite) TestListBatches() {
	s.produce(100)
	s.newBatch(s.seller.ID, 50, 2)
	s.newBatch(s.seller.ID, 50, 3)

	result, err := s.svc.Batches.ListBatches(s.ctx, &BatchFilter{SellerID: &s.seller.ID})
	s.Require().NoError(err)
	s.EqualValues(2, result.Total)

	batches, ok := result.Data.([]models.Batch)
	s.Require().True(ok)
	s.Len(batches, 2)
}

// No sub-batch moves past PENDING before its predecessor settled, and the batch
// accounts for every approved unit of revenue, whatever order operations arrive in.
func (s *BatchServiceTestSuite) TestReleaseOrderingUnderRandomOperations() {
	rapid.Check(s.T(), func(t *rapid.T) {
		quantity := rapid.IntRange(10, 120).Draw(t, "quantity")
		count := rapid.SampledFrom([]int{2, 3}).Draw(t, "count")
		produced := rapid.IntRange(1, quantity).Draw(t, "produced")

		_, err := s.svc.Stock.RegisterProduction(s.ctx, &ProductionRequest{Quantity: produced, UnitCost: d(1200)})
		require.NoError(t, err)
		batch, err := s.svc.Batches.CreateBatch(s.ctx, &CreateBatchRequest{
			SellerID:          s.seller.ID,
			Quantity:          quantity,
			PerceivedUnitCost: d(2400),
			SubBatchCount:     count,
		})
		require.NoError(t, err)

		subIDs := make([]uuid.UUID, len(batch.SubBatches))
		for i, sub := range batch.SubBatches {
			subIDs[i] = sub.ID
		}
		anySub := rapid.SampledFrom(subIDs)

		openOf := func() []models.Settlement {
			var open []models.Settlement
			require.NoError(t, s.db.Where("batch_id = ? AND status IN ?", batch.ID,
				[]models.SettlementStatus{models.SettlementStatusPending, models.SettlementStatusInProgress}).
				Find(&open).Error)
			return open
		}
		pendingSales := func() []models.Sale {
			var sales []models.Sale
			require.NoError(t, s.db.Where("sub_batch_id IN ? AND status = ?", subIDs, models.SaleStatusPending).
				Find(&sales).Error)
			return sales
		}
		allowed := func(op string, err error) {
			if err != nil {
				require.NotEmpty(t, KindOf(err), "%s: unexpected error %v", op, err)
			}
		}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch op := rapid.SampledFrom([]string{"register", "sell", "approve", "release", "create", "start", "confirm", "cancel"}).Draw(t, "op"); op {
			case "register", "sell":
				subID := anySub.Draw(t, "sub")
				sale, err := s.svc.Sales.RegisterSale(s.ctx, &RegisterSaleRequest{
					SellerID:   s.seller.ID,
					SubBatchID: &subID,
					Type:       models.SaleTypeStandard,
					Quantity:   rapid.IntRange(1, 15).Draw(t, "units"),
				})
				allowed(op, err)
				if err == nil && op == "sell" {
					_, err = s.svc.Sales.ApproveSale(s.ctx, sale.ID)
					allowed("approve", err)
				}
			case "approve":
				if sales := pendingSales(); len(sales) > 0 {
					sale := rapid.SampledFrom(sales).Draw(t, "sale")
					_, err := s.svc.Sales.ApproveSale(s.ctx, sale.ID)
					allowed(op, err)
				}
			case "release":
				_, err := s.svc.Batches.ReleaseSubBatch(s.ctx, anySub.Draw(t, "sub"))
				allowed(op, err)
			case "create":
				_, err := s.svc.Settlements.CreateSettlement(s.ctx, &CreateSettlementRequest{
					SubBatchID: anySub.Draw(t, "sub"),
					Forced:     rapid.Bool().Draw(t, "forced"),
				})
				allowed(op, err)
			case "start":
				if open := openOf(); len(open) > 0 {
					_, err := s.svc.Settlements.StartSettlement(s.ctx, rapid.SampledFrom(open).Draw(t, "settlement").ID)
					allowed(op, err)
				}
			case "confirm":
				if open := openOf(); len(open) > 0 {
					st := rapid.SampledFrom(open).Draw(t, "settlement")
					received := st.ExpectedAmount.Add(d(int64(rapid.IntRange(-3000, 3000).Draw(t, "delta"))))
					if received.IsNegative() {
						received = d(0)
					}
					_, err := s.svc.Settlements.ConfirmSettlement(s.ctx, st.ID, &ConfirmSettlementRequest{
						AmountReceived: received,
						Force:          rapid.Bool().Draw(t, "force"),
					})
					allowed(op, err)
				}
			case "cancel":
				if open := openOf(); len(open) > 0 {
					_, err := s.svc.Settlements.CancelSettlement(s.ctx, rapid.SampledFrom(open).Draw(t, "settlement").ID,
						&CancelSettlementRequest{Reason: "operator withdrew"})
					allowed(op, err)
				}
			}

			var subs []models.SubBatch
			require.NoError(t, s.db.Where("batch_id = ?", batch.ID).Order("sequence").Find(&subs).Error)
			require.Len(t, subs, count)

			var open []models.Settlement
			require.NoError(t, s.db.Where("batch_id = ? AND status IN ?", batch.ID,
				[]models.SettlementStatus{models.SettlementStatusPending, models.SettlementStatusInProgress}).
				Find(&open).Error)
			openBySub := map[uuid.UUID]int{}
			for _, st := range open {
				openBySub[st.SubBatchID]++
			}

			for k, sub := range subs {
				require.LessOrEqual(t, openBySub[sub.ID], 1, "sub-batch %d has several open settlements", sub.Sequence)
				require.Equal(t, sub.State == models.SubBatchStateSettling, openBySub[sub.ID] == 1,
					"sub-batch %d is %s with %d open settlements", sub.Sequence, sub.State, openBySub[sub.ID])
				if k == 0 || sub.State == models.SubBatchStatePending {
					continue
				}
				require.Equal(t, models.SubBatchStateSettled, subs[k-1].State,
					"sub-batch %d is %s while sub-batch %d is %s", sub.Sequence, sub.State, subs[k-1].Sequence, subs[k-1].State)
			}

			var settled []models.Settlement
			require.NoError(t, s.db.Where("batch_id = ? AND status = ?", batch.ID, models.SettlementStatusSuccessful).
				Find(&settled).Error)
			paidOut := d(0)
			for _, st := range settled {
				require.NotNil(t, st.ReceivedAmount)
				paidOut = paidOut.Add(*st.ReceivedAmount).Add(st.SellerInvestmentRecovery).Add(st.SellerProfit)
			}
			revenue := d(0)
			for _, sub := range subs {
				if sub.State != models.SubBatchStateSettled {
					continue
				}
				r, err := approvedRevenue(s.db, sub.ID)
				require.NoError(t, err)
				revenue = revenue.Add(r)
			}
			var b models.Batch
			require.NoError(t, s.db.First(&b, "id = ?", batch.ID).Error)
			require.True(t, revenue.Equal(paidOut.Add(b.CarriedSurplus)),
				"settled revenue %s, paid out %s, carried %s", revenue, paidOut, b.CarriedSurplus)
		}
	})
}
