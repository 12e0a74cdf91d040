// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/batch-settlement/internal/config"
	"github.com/javajoker/batch-settlement/internal/events"
	"github.com/javajoker/batch-settlement/internal/models"
)

// NotificationService hands settlement outcomes to the messaging collaborator
// and the rewards fund. Publishing failures are logged, never returned to the
// operation that already committed.
type NotificationService struct {
	publisher events.Publisher
	topics    config.KafkaConfig
	locale    string
}

type MessageTemplate struct {
	Subject string
	Body    string
}

type summaryData struct {
	Reference    string
	Sequence     int
	Total        int
	Type         models.SettlementType
	Branch       string
	Revenue      string
	SurplusIn    string
	Expected     string
	Received     string
	SellerAmount string
	SurplusOut   string
	Outstanding  string
	Shortfall    bool
	Cascade      []models.CascadeShare
	Completed    bool
}

func NewNotificationService(publisher events.Publisher, topics config.KafkaConfig, locale string) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		topics:    topics,
		locale:    locale,
	}
}

func (s *NotificationService) SettlementCreated(ctx context.Context, st *models.Settlement) {
	s.publish(ctx, events.Message{
		Topic: events.Topic(s.topics.SettlementTopic),
		Key:   st.SubBatchID.String(),
		Payload: events.SettlementCreated{
			SettlementID: st.ID,
			SubBatchID:   st.SubBatchID,
			Branch:       st.Branch,
			Expected:     st.ExpectedAmount,
			Forced:       st.Forced,
			OccurredAt:   st.CreatedAt,
		},
	})
}

// SettlementConfirmed publishes the human-readable summary and, when positive, the rewards contribution.
func (s *NotificationService) SettlementConfirmed(ctx context.Context, st *models.Settlement, batch *models.Batch, rewards decimal.Decimal, rewardsPct decimal.Decimal) {
	text, err := s.RenderSummary(st, batch)
	if err != nil {
		logrus.WithError(err).WithField("settlement_id", st.ID).Error("Failed to render settlement summary")
		text = fmt.Sprintf("Settlement %s confirmed", st.Reference)
	}

	received := decimal.Zero
	if st.ReceivedAmount != nil {
		received = *st.ReceivedAmount
	}
	confirmedAt := time.Now()
	if st.ConfirmedAt != nil {
		confirmedAt = *st.ConfirmedAt
	}

	msgs := []events.Message{{
		Topic: events.Topic(s.topics.SummaryTopic),
		Key:   batch.SellerID.String(),
		Payload: events.SettlementSummary{
			SettlementID: st.ID,
			Reference:    st.Reference,
			BatchID:      batch.ID,
			SellerID:     batch.SellerID,
			Sequence:     st.Sequence,
			Type:         string(st.Type),
			Expected:     st.ExpectedAmount,
			Received:     received,
			SurplusOut:   st.SurplusOut,
			Subject:      s.getMessageTemplate("settlement_summary").Subject,
			Text:         text,
			ConfirmedAt:  confirmedAt,
		},
	}}

	if rewards.IsPositive() {
		msgs = append(msgs, events.Message{
			Topic: events.Topic(s.topics.RewardsTopic),
			Key:   st.ID.String(),
			Payload: events.RewardsContribution{
				SettlementID: st.ID,
				BatchID:      batch.ID,
				SellerID:     batch.SellerID,
				Amount:       rewards,
				Basis:        st.UpwardProfit,
				Pct:          rewardsPct,
				OccurredAt:   confirmedAt,
			},
		})
	}

	s.publish(ctx, msgs...)
}

func (s *NotificationService) RenderSummary(st *models.Settlement, batch *models.Batch) (string, error) {
	received := "-"
	if st.ReceivedAmount != nil {
		received = st.ReceivedAmount.StringFixed(2)
	}
	data := summaryData{
		Reference:    st.Reference,
		Sequence:     st.Sequence,
		Total:        batch.SubBatchCount,
		Type:         st.Type,
		Branch:       st.Branch,
		Revenue:      st.Revenue.StringFixed(2),
		SurplusIn:    st.SurplusIn.StringFixed(2),
		Expected:     st.ExpectedAmount.StringFixed(2),
		Received:     received,
		SellerAmount: st.SellerAmount.StringFixed(2),
		SurplusOut:   st.SurplusOut.StringFixed(2),
		Outstanding:  batch.SellerInvestmentOutstanding().StringFixed(2),
		Shortfall:    st.ShortfallAccepted,
		Cascade:      st.Breakdown.Cascade,
		Completed:    batch.State == models.BatchStateCompleted,
	}

	tmpl := s.getMessageTemplate("settlement_summary")
	return s.renderTemplate(tmpl.Body, data)
}

func (s *NotificationService) publish(ctx context.Context, msgs ...events.Message) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, msgs...); err != nil {
		logrus.WithError(err).WithField("messages", len(msgs)).Error("Failed to publish settlement events")
	}
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("message").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getMessageTemplate(templateType string) MessageTemplate {
	templates := map[string]map[string]MessageTemplate{
		"en": {
			"settlement_summary": {
				Subject: "Settlement confirmed",
				Body: `Settlement {{.Reference}} confirmed ({{.Type}}, sub-batch {{.Sequence}} of {{.Total}})
Revenue: {{.Revenue}}  Surplus in: {{.SurplusIn}}
Expected upward: {{.Expected}}  Received: {{.Received}}{{if .Shortfall}} (shortfall accepted){{end}}
Retained by seller: {{.SellerAmount}}  Surplus carried: {{.SurplusOut}}
Seller investment outstanding: {{.Outstanding}}
{{- range .Cascade}}
  level {{.Level}}{{if .IsRoot}} (root){{end}}: {{.Amount.StringFixed 2}}
{{- end}}
{{- if .Completed}}
Batch completed.{{end}}`,
			},
		},
		"es": {
			"settlement_summary": {
				Subject: "Cuadre confirmado",
				Body: `Cuadre {{.Reference}} confirmado ({{.Type}}, tanda {{.Sequence}} de {{.Total}})
Ingresos: {{.Revenue}}  Sobrante anterior: {{.SurplusIn}}
Esperado: {{.Expected}}  Recibido: {{.Received}}{{if .Shortfall}} (faltante aceptado){{end}}
Retiene el vendedor: {{.SellerAmount}}  Sobrante: {{.SurplusOut}}
Inversion pendiente del vendedor: {{.Outstanding}}
{{- range .Cascade}}
  nivel {{.Level}}{{if .IsRoot}} (raiz){{end}}: {{.Amount.StringFixed 2}}
{{- end}}
{{- if .Completed}}
Lote completado.{{end}}`,
			},
		},
	}

	locale, ok := templates[s.locale]
	if !ok {
		locale = templates["en"]
	}
	if tmpl, exists := locale[templateType]; exists {
		return tmpl
	}

	// Default template
	return MessageTemplate{
		Subject: "Notification",
		Body:    "{{.Reference}}",
	}
}
