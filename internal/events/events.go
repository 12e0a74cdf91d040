// Package events carries settlement side effects to external collaborators
// (notification messaging and the rewards fund ledger).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/batch-settlement/internal/config"
)

type Topic string

// Message is one outbound event.
type Message struct {
	Topic   Topic
	Key     string
	Payload interface{}
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}

type SettlementSummary struct {
	SettlementID uuid.UUID       `json:"settlement_id"`
	Reference    string          `json:"reference"`
	BatchID      uuid.UUID       `json:"batch_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	Sequence     int             `json:"sequence"`
	Type         string          `json:"type"`
	Expected     decimal.Decimal `json:"expected"`
	Received     decimal.Decimal `json:"received"`
	SurplusOut   decimal.Decimal `json:"surplus_out"`
	Subject      string          `json:"subject"`
	Text         string          `json:"text"`
	ConfirmedAt  time.Time       `json:"confirmed_at"`
}

type RewardsContribution struct {
	SettlementID uuid.UUID       `json:"settlement_id"`
	BatchID      uuid.UUID       `json:"batch_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	Amount       decimal.Decimal `json:"amount"`
	Basis        decimal.Decimal `json:"basis"`
	Pct          decimal.Decimal `json:"pct"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type SettlementCreated struct {
	SettlementID uuid.UUID       `json:"settlement_id"`
	SubBatchID   uuid.UUID       `json:"sub_batch_id"`
	Branch       string          `json:"branch"`
	Expected     decimal.Decimal `json:"expected"`
	Forced       bool            `json:"forced"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// KafkaPublisher writes JSON messages through one shared writer; the topic is set per message.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msgs ...Message) error {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", m.Topic, err)
		}
		out = append(out, kafka.Message{Topic: string(m.Topic), Key: []byte(m.Key), Value: b})
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	logger *logrus.Logger
}

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msgs ...Message) error {
	for _, m := range msgs {
		p.logger.WithFields(logrus.Fields{
			"topic":   m.Topic,
			"key":     m.Key,
			"payload": m.Payload,
		}).Info("Event published")
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MemoryPublisher keeps published messages in order.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, msgs ...Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msgs...)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Messages returns the published messages for topic, or all when topic is empty.
func (p *MemoryPublisher) Messages(topic Topic) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.messages {
		if topic == "" || m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// New picks the kafka publisher when enabled, the log publisher otherwise.
func New(cfg config.KafkaConfig, logger *logrus.Logger) Publisher {
	if cfg.Enabled && len(cfg.Brokers) > 0 {
		return NewKafkaPublisher(cfg)
	}
	return NewLogPublisher(logger)
}
