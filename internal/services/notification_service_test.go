package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/events"
	"github.com/javajoker/batch-settlement/internal/models"
)

func summaryFixture() (*models.Settlement, *models.Batch) {
	received := d(9000)
	now := time.Now()
	st := &models.Settlement{
		Reference:         "CDR-TEST0001",
		Sequence:          2,
		Type:              models.SettlementTypeProfit,
		Branch:            "CLOSING_MIXED",
		Revenue:           d(20000),
		SurplusIn:         d(0),
		ExpectedAmount:    d(10000),
		ReceivedAmount:    &received,
		SellerAmount:      d(10000),
		UpwardProfit:      d(10000),
		SurplusOut:        d(1000),
		ShortfallAccepted: true,
		ConfirmedAt:       &now,
		Breakdown: models.Breakdown{Cascade: []models.CascadeShare{
			{Level: 1, SellerID: uuid.New(), Amount: d(5000)},
			{Level: 2, SellerID: uuid.New(), Amount: d(5000), IsRoot: true},
		}},
	}
	st.ID = uuid.New()
	batch := &models.Batch{
		SellerID:                  uuid.New(),
		SubBatchCount:             2,
		State:                     models.BatchStateCompleted,
		SellerInvestment:          d(40000),
		SellerInvestmentRecovered: d(10000),
	}
	batch.ID = uuid.New()
	return st, batch
}

func TestRenderSummary(t *testing.T) {
	st, batch := summaryFixture()

	text, err := NewNotificationService(nil, config.KafkaConfig{}, "en").RenderSummary(st, batch)
	require.NoError(t, err)
	assert.Contains(t, text, "Settlement CDR-TEST0001 confirmed (PROFIT, sub-batch 2 of 2)")
	assert.Contains(t, text, "Received: 9000.00 (shortfall accepted)")
	assert.Contains(t, text, "level 2 (root): 5000.00")
	assert.Contains(t, text, "Seller investment outstanding: 30000.00")
	assert.Contains(t, text, "Batch completed.")

	batch.SellerInvestmentRecovered = d(45000)
	text, err = NewNotificationService(nil, config.KafkaConfig{}, "en").RenderSummary(st, batch)
	require.NoError(t, err)
	assert.Contains(t, text, "Seller investment outstanding: 0.00")

	text, err = NewNotificationService(nil, config.KafkaConfig{}, "es").RenderSummary(st, batch)
	require.NoError(t, err)
	assert.Contains(t, text, "Cuadre CDR-TEST0001 confirmado")
	assert.Contains(t, text, "Lote completado.")
}

func TestSettlementConfirmedPublishesRewards(t *testing.T) {
	st, batch := summaryFixture()
	publisher := events.NewMemoryPublisher()
	topics := config.KafkaConfig{SummaryTopic: "summary", RewardsTopic: "rewards", SettlementTopic: "settlement"}
	svc := NewNotificationService(publisher, topics, "en")

	svc.SettlementConfirmed(context.Background(), st, batch, d(500), d(5))
	summaries := publisher.Messages("summary")
	require.Len(t, summaries, 1)
	summary := summaries[0].Payload.(events.SettlementSummary)
	assert.Equal(t, "Settlement confirmed", summary.Subject)
	assert.Contains(t, summary.Text, "Settlement CDR-TEST0001 confirmed")
	rewards := publisher.Messages("rewards")
	require.Len(t, rewards, 1)
	contribution := rewards[0].Payload.(events.RewardsContribution)
	assert.True(t, contribution.Amount.Equal(d(500)))
	assert.True(t, contribution.Basis.Equal(d(10000)))

	svc.SettlementConfirmed(context.Background(), st, batch, d(0), d(5))
	assert.Len(t, publisher.Messages("summary"), 2)
	assert.Len(t, publisher.Messages("rewards"), 1)
}
