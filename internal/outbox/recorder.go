// Package outbox records domain events inside aggregate transactions and
// relays them to Kafka with Schema Registry framing.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/allerhed/rythm/internal/domain"
)

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

const (
	SessionTopic  = "session_events"
	CatalogTopic  = "exercise_catalog_events"
	subjectSuffix = "-value"
)

var routes = map[string]Route{
	domain.EventSessionCreated:    {Topic: SessionTopic, SchemaSubject: SessionTopic + subjectSuffix, Schema: sessionWrittenSchema},
	domain.EventSessionUpdated:    {Topic: SessionTopic, SchemaSubject: SessionTopic + subjectSuffix, Schema: sessionWrittenSchema},
	domain.EventSessionDeleted:    {Topic: SessionTopic, SchemaSubject: SessionTopic + subjectSuffix, Schema: sessionDeletedSchema},
	domain.EventExerciseCataloged: {Topic: CatalogTopic, SchemaSubject: CatalogTopic + subjectSuffix, Schema: exerciseCatalogedSchema},
}

// RouteFor returns the routing metadata of an event type.
func RouteFor(eventType string) (Route, bool) {
	r, ok := routes[eventType]
	return r, ok
}

// Record appends event to the outbox table using the caller's transaction.
func Record(ctx context.Context, tx pgx.Tx, event domain.Event) error {
	route, ok := RouteFor(event.Type)
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", event.AggregateID, event.Type, event.OccurredAt.UnixNano())

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		event.TenantID,
		event.AggregateType,
		event.AggregateID,
		event.Type,
		route.Topic,
		route.SchemaSubject,
		event.PartitionKey,
		body,
		dedupeKey,
	)
	return err
}
