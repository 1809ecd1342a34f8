// Package domain implements the training session aggregate: a session owned by
// one (user, tenant) pair, the exercises performed in it and their sets.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category enumerates the training types a session (or catalog exercise) can carry.
type Category string

const (
	CategoryStrength Category = "strength"
	CategoryCardio   Category = "cardio"
	CategoryHybrid   Category = "hybrid"
)

// ParseCategory validates a submitted category, ignoring case and surrounding space.
func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryStrength, CategoryCardio, CategoryHybrid:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// Session is one logged training occurrence.
type Session struct {
	ID                string
	UserID            string
	TenantID          string
	Name              string
	Category          Category
	Notes             string
	StartedAt         time.Time
	CompletedAt       *time.Time
	TrainingLoad      *int
	PerceivedExertion *float64
	DurationSeconds   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Exercise is a named movement in the global catalog.
type Exercise struct {
	ID           string
	Name         string
	MuscleGroups []string
	Equipment    string
	Category     Category
	Notes        string
	CreatedAt    time.Time
}

// Measurement is one sanitized (type, value) slot of a set. Value is nil
// whenever the measurement was not recorded, and Type is then nil as well.
type Measurement struct {
	Type  *string
	Value *float64
}

// Recorded reports whether the slot carries a value.
func (m Measurement) Recorded() bool {
	return m.Value != nil
}

// Set is one performed unit of an exercise within a session.
type Set struct {
	ID               string
	SessionID        string
	ExerciseID       string
	TenantID         string
	ExercisePosition int
	SetIndex         int
	Value1           Measurement
	Value2           Measurement
	Notes            string
	CreatedAt        time.Time
}

// SessionExercise is an exercise in the context of one session, with the sets
// performed for it ordered by SetIndex.
type SessionExercise struct {
	Exercise
	Position int
	Sets     []Set
}

// SessionAggregate is the consistency unit for writes: the session plus its
// exercises-in-context and sets.
type SessionAggregate struct {
	Session
	Exercises []SessionExercise
}

// SetCount returns the number of sets across all exercises.
func (a SessionAggregate) SetCount() int {
	n := 0
	for _, ex := range a.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// Cursor models the list pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// ListFilter narrows a session listing.
type ListFilter struct {
	// Day restricts results to sessions started within the UTC calendar day.
	Day    *time.Time
	Limit  int
	Cursor *Cursor
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (f ListFilter) normalized() ListFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	if f.Day != nil {
		day := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
		f.Day = &day
	}
	return f
}

// DayBounds returns the half-open [start, end) interval of the filter day.
func (f ListFilter) DayBounds() (time.Time, time.Time, bool) {
	if f.Day == nil {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1), true
}
