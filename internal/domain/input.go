package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionInput is the client payload for create and update. Nil pointers mean
// the field was absent.
type SessionInput struct {
	Name              *string
	Category          *string
	Notes             *string
	TrainingLoad      *int
	PerceivedExertion *float64
	Duration          *string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	Exercises         []ExerciseInput
}

// ExerciseInput references a catalog exercise either by id or by name, and
// carries the sets performed for it.
type ExerciseInput struct {
	ExerciseID   string
	Name         string
	MuscleGroups []string
	Equipment    string
	Category     string
	Notes        string
	Sets         []SetInput
}

// SetInput is one submitted set. SetIndex is optional.
type SetInput struct {
	SetIndex *int
	Value1   RawMeasurement
	Value2   RawMeasurement
	Notes    string
}

// Principal identifies the caller.
type Principal struct {
	UserID   string
	TenantID string
}

// NewPrincipal validates caller identifiers.
func NewPrincipal(userID, tenantID string) (Principal, error) {
	if !isUUID(userID) || !isUUID(tenantID) {
		return Principal{}, ErrAuthentication
	}
	return Principal{UserID: strings.ToLower(userID), TenantID: strings.ToLower(tenantID)}, nil
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// sessionKey validates a session id from the request path. Malformed ids are
// indistinguishable from unknown ones.
func sessionKey(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrNotFoundOrAccessDenied
	}
	return parsed.String(), nil
}

func (in SessionInput) validateMetrics() error {
	if in.TrainingLoad != nil && *in.TrainingLoad < 0 {
		return invalid("training_load", "must not be negative")
	}
	if in.TrainingLoad != nil && *in.TrainingLoad > math.MaxInt32 {
		return invalid("training_load", "must not exceed %d", math.MaxInt32)
	}
	if in.PerceivedExertion != nil && (*in.PerceivedExertion < 1 || *in.PerceivedExertion > 10) {
		return invalid("perceived_exertion", "must be between 1 and 10")
	}
	if in.StartedAt != nil && in.CompletedAt != nil && in.CompletedAt.Before(*in.StartedAt) {
		return invalid("completed_at", "must not precede started_at")
	}
	return nil
}

// validateTimes checks the stored shape of the session, after defaults or
// coalescing have filled in whichever bound the payload left out.
func (s Session) validateTimes() error {
	if s.CompletedAt != nil && s.CompletedAt.Before(s.StartedAt) {
		return invalid("completed_at", "must not precede started_at")
	}
	return nil
}

func validateExercises(exercises []ExerciseInput) error {
	for i, ex := range exercises {
		if strings.TrimSpace(ex.ExerciseID) == "" && strings.TrimSpace(ex.Name) == "" {
			return invalid("exercises", "exercise %d needs an exercise_id or a name", i)
		}
		if ex.Category != "" {
			if _, err := ParseCategory(ex.Category); err != nil {
				return invalid("exercises.category", "%s", err.Error())
			}
		}
		for _, set := range ex.Sets {
			if set.SetIndex != nil && *set.SetIndex < 1 {
				return invalid("sets.set_index", "must be at least 1")
			}
		}
	}
	return nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
