//go:build integration

package consumer

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"github.com/allerhed/rythm/internal/outbox"
)

type capturingHandler struct {
	mu       sync.Mutex
	messages []Message
}

func (h *capturingHandler) Handle(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *capturingHandler) received() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

func TestProducerToProcessorRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             outbox.SessionTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	payload := []byte(`{"session_id":"s-1","tenant_id":"tenant"}`)
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], 9)
	copy(value[5:], payload)

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()
	require.NoError(t, producer.WriteMessages(ctx, outbox.SessionTopic, kafka.Message{
		Key:   []byte("tenant:user"),
		Value: value,
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte("session.created")},
			{Key: outbox.HeaderTenantID, Value: []byte("tenant")},
			{Key: outbox.HeaderAggregateID, Value: []byte("s-1")},
			{Key: outbox.HeaderSchemaSubject, Value: []byte(outbox.SessionTopic + "-value")},
		},
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "rythm-integration",
		Topic:       outbox.SessionTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	handler := &capturingHandler{}
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = NewProcessor(reader, handler, WithLogger(zap.NewNop())).Run(consumerCtx)
	}()

	require.Eventually(t, func() bool { return len(handler.received()) == 1 }, time.Minute, 200*time.Millisecond)

	got := handler.received()[0]
	require.Equal(t, "session.created", got.EventType)
	require.Equal(t, "s-1", got.AggregateID)
	require.Equal(t, 9, got.SchemaID)
	require.JSONEq(t, string(payload), string(got.Payload))
}
