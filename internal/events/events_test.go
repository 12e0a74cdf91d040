package events

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/batch-settlement/internal/config"
)

func TestMemoryPublisherFiltersByTopic(t *testing.T) {
	p := NewMemoryPublisher()
	require.NoError(t, p.Publish(context.Background(),
		Message{Topic: "a", Key: "1", Payload: 1},
		Message{Topic: "b", Key: "2", Payload: 2},
		Message{Topic: "a", Key: "3", Payload: 3},
	))

	assert.Len(t, p.Messages(""), 3)
	a := p.Messages("a")
	require.Len(t, a, 2)
	assert.Equal(t, "3", a[1].Key)
}

func TestLogPublisherWritesEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewLogPublisher(logger)

	require.NoError(t, p.Publish(context.Background(), Message{Topic: "summary", Key: "k", Payload: "x"}))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, Topic("summary"), hook.LastEntry().Data["topic"])
}

func TestNewFallsBackToLogPublisher(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, ok := New(config.KafkaConfig{Enabled: false}, logger).(*LogPublisher)
	assert.True(t, ok)

	_, ok = New(config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}}, logger).(*KafkaPublisher)
	assert.True(t, ok)
}
