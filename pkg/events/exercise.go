package events

import "time"

// ExerciseCataloged is emitted the first time an exercise name enters the
// global catalog. TenantID names the tenant whose session introduced it.
type ExerciseCataloged struct {
	ExerciseID   string    `json:"exercise_id"`
	Name         string    `json:"name"`
	MuscleGroups []string  `json:"muscle_groups"`
	Equipment    string    `json:"equipment,omitempty"`
	Category     string    `json:"category"`
	TenantID     string    `json:"tenant_id"`
	CatalogedAt  time.Time `json:"cataloged_at"`
}
