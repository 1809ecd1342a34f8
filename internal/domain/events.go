package domain

import (
	"time"

	"github.com/allerhed/rythm/pkg/events"
)

const (
	aggregateSession  = "session"
	aggregateExercise = "exercise"
)

func sessionWrittenEvent(eventType string, agg SessionAggregate, at time.Time) Event {
	return Event{
		Type:          eventType,
		TenantID:      agg.TenantID,
		AggregateType: aggregateSession,
		AggregateID:   agg.ID,
		PartitionKey:  agg.TenantID + ":" + agg.UserID,
		OccurredAt:    at,
		Payload: events.SessionWritten{
			SessionID:       agg.ID,
			TenantID:        agg.TenantID,
			UserID:          agg.UserID,
			Name:            agg.Name,
			Category:        string(agg.Category),
			StartedAt:       agg.StartedAt,
			DurationSeconds: agg.DurationSeconds,
			ExerciseCount:   len(agg.Exercises),
			SetCount:        agg.SetCount(),
			OccurredAt:      at,
		},
	}
}

func sessionDeletedEvent(session Session, at time.Time) Event {
	return Event{
		Type:          EventSessionDeleted,
		TenantID:      session.TenantID,
		AggregateType: aggregateSession,
		AggregateID:   session.ID,
		PartitionKey:  session.TenantID + ":" + session.UserID,
		OccurredAt:    at,
		Payload: events.SessionDeleted{
			SessionID:  session.ID,
			TenantID:   session.TenantID,
			UserID:     session.UserID,
			OccurredAt: at,
		},
	}
}

func exerciseCatalogedEvent(ex Exercise, tenantID string) Event {
	return Event{
		Type:          EventExerciseCataloged,
		TenantID:      tenantID,
		AggregateType: aggregateExercise,
		AggregateID:   ex.ID,
		PartitionKey:  ex.ID,
		OccurredAt:    ex.CreatedAt,
		Payload: events.ExerciseCataloged{
			ExerciseID:   ex.ID,
			Name:         ex.Name,
			MuscleGroups: ex.MuscleGroups,
			Equipment:    ex.Equipment,
			Category:     string(ex.Category),
			TenantID:     tenantID,
			CatalogedAt:  ex.CreatedAt,
		},
	}
}
