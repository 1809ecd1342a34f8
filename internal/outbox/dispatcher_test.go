package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/allerhed/rythm/internal/domain"
)

type stubWrite struct {
	topic    string
	messages []kafka.Message
}

type stubProducer struct {
	writes []stubWrite
	err    error
}

func (p *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, stubWrite{topic: topic, messages: msgs})
	return nil
}

type stubRegistry struct {
	id    int
	calls int
	err   error
}

func (r *stubRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	r.calls++
	return r.id, r.err
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDeliverGroupsByTopicAndFramesPayload(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, nil, time.Second, 10)

	messages := []Message{
		{EventID: 1, TenantID: "t1", AggregateID: "s1", EventType: domain.EventExerciseCataloged, Topic: CatalogTopic, SchemaSubject: CatalogTopic + "-value", PartitionKey: "e1", Payload: []byte(`{"exercise_id":"e1"}`)},
		{EventID: 2, TenantID: "t1", AggregateID: "s1", EventType: domain.EventSessionCreated, Topic: SessionTopic, SchemaSubject: SessionTopic + "-value", PartitionKey: "t1:u1", Payload: []byte(`{"session_id":"s1"}`)},
		{EventID: 3, TenantID: "t1", AggregateID: "s1", EventType: domain.EventSessionUpdated, Topic: SessionTopic, SchemaSubject: SessionTopic + "-value", PartitionKey: "t1:u1", Payload: []byte(`{"session_id":"s1"}`)},
	}
	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 2)
	require.Equal(t, CatalogTopic, producer.writes[0].topic)
	require.Equal(t, SessionTopic, producer.writes[1].topic)
	require.Len(t, producer.writes[1].messages, 2)

	record := producer.writes[1].messages[0]
	require.Equal(t, "t1:u1", string(record.Key))
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"session_id":"s1"}`, string(record.Value[5:]))
	require.Equal(t, domain.EventSessionCreated, header(record, HeaderEventType))
	require.Equal(t, "t1", header(record, HeaderTenantID))
	require.Equal(t, SessionTopic+"-value", header(record, HeaderSchemaSubject))

	// session.created and session.updated share a subject and schema.
	require.Equal(t, 2, registry.calls)
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	d := NewDispatcher(nil, &stubProducer{}, &stubRegistry{id: 1}, nil, time.Second, 10)
	err := d.deliver(context.Background(), []Message{{EventType: "session.archived", Topic: SessionTopic}})
	require.ErrorContains(t, err, "session.archived")
}

func TestDeliverSurfacesRegistryAndProducerErrors(t *testing.T) {
	msg := Message{EventType: domain.EventSessionDeleted, Topic: SessionTopic, SchemaSubject: SessionTopic + "-value", Payload: []byte(`{}`)}

	d := NewDispatcher(nil, &stubProducer{}, &stubRegistry{err: errors.New("registry down")}, nil, time.Second, 10)
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "registry down")

	d = NewDispatcher(nil, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 7}, nil, time.Second, 10)
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "broker down")
}

func TestRoutesCoverDomainEvents(t *testing.T) {
	for _, eventType := range []string{
		domain.EventSessionCreated,
		domain.EventSessionUpdated,
		domain.EventSessionDeleted,
		domain.EventExerciseCataloged,
	} {
		route, ok := RouteFor(eventType)
		require.True(t, ok, eventType)
		require.Equal(t, route.Topic+"-value", route.SchemaSubject)
		require.NotEmpty(t, route.Schema)
	}
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, nil, 5, time.Minute)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(8))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}
