// Package events defines cross-service event payloads emitted by the session
// aggregate engine.
package events

import "time"

// SessionWritten is emitted when a session aggregate is created or replaced.
type SessionWritten struct {
	SessionID       string    `json:"session_id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
	ExerciseCount   int       `json:"exercise_count"`
	SetCount        int       `json:"set_count"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// SessionDeleted is emitted when a session and its sets are removed.
type SessionDeleted struct {
	SessionID  string    `json:"session_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
