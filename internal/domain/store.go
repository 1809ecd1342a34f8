package domain

import (
	"context"
	"time"
)

// Domain event types recorded alongside aggregate writes.
const (
	EventSessionCreated    = "session.created"
	EventSessionUpdated    = "session.updated"
	EventSessionDeleted    = "session.deleted"
	EventExerciseCataloged = "exercise.cataloged"
)

// Event is an outbox entry appended in the same transaction as the write that produced it.
type Event struct {
	Type          string
	TenantID      string
	AggregateType string
	AggregateID   string
	PartitionKey  string
	OccurredAt    time.Time
	Payload       any
}

// TxBeginner opens a storage transaction scoped to a tenant.
type TxBeginner interface {
	Begin(ctx context.Context, tenantID string) (Tx, error)
}

// ErrorClassifier is optionally implemented by a TxBeginner to translate
// storage-specific failures (constraint violations, say) into taxonomy errors.
type ErrorClassifier interface {
	ClassifyError(err error) error
}

// Tx is one pending unit of work.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// LockOwnedSession returns the session row locked for update, or nil when
	// no session with that id is owned by the (user, tenant) pair.
	LockOwnedSession(ctx context.Context, sessionID, userID, tenantID string) (*Session, error)
	InsertSession(ctx context.Context, session Session) error
	// UpdateSession and DeleteSession repeat the owner filter and report the
	// number of affected rows.
	UpdateSession(ctx context.Context, session Session) (int64, error)
	DeleteSession(ctx context.Context, sessionID, userID, tenantID string) (int64, error)
	DeleteSets(ctx context.Context, sessionID, tenantID string) (int64, error)

	// ExerciseByID returns nil when no catalog row has that id.
	ExerciseByID(ctx context.Context, exerciseID string) (*Exercise, error)
	// UpsertExerciseByName inserts candidate unless an exercise with the same
	// case-insensitive name exists, in which case the existing row is returned
	// untouched. created reports whether candidate was inserted.
	UpsertExerciseByName(ctx context.Context, candidate Exercise) (exercise Exercise, created bool, err error)
	InsertSet(ctx context.Context, set Set) error

	AppendEvent(ctx context.Context, event Event) error
}

// Store is the persistence port of the session aggregate.
type Store interface {
	TxBeginner
	// GetSession returns nil when the session is absent or not owned by the caller.
	GetSession(ctx context.Context, sessionID, userID, tenantID string) (*SessionAggregate, error)
	// ListSessions returns one page and the cursor of the next one, if any.
	ListSessions(ctx context.Context, userID, tenantID string, filter ListFilter) ([]SessionAggregate, *Cursor, error)
}
