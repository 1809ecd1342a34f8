package api

import (
	"time"

	"github.com/allerhed/rythm/internal/domain"
)

// SessionView exposes a session aggregate.
type SessionView struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	TenantID          string         `json:"tenant_id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Notes             string         `json:"notes,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	TrainingLoad      *int           `json:"training_load,omitempty"`
	PerceivedExertion *float64       `json:"perceived_exertion,omitempty"`
	DurationSeconds   int            `json:"duration_seconds"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Exercises         []ExerciseView `json:"exercises"`
}

// ExerciseView is an exercise in the context of one session.
type ExerciseView struct {
	ExerciseID   string    `json:"exercise_id"`
	Name         string    `json:"name"`
	MuscleGroups []string  `json:"muscle_groups"`
	Equipment    string    `json:"equipment,omitempty"`
	Category     string    `json:"category"`
	Notes        string    `json:"notes,omitempty"`
	Position     int       `json:"position"`
	Sets         []SetView `json:"sets"`
}

// SetView is one persisted set.
type SetView struct {
	ID            string    `json:"id"`
	SetIndex      int       `json:"set_index"`
	Value1Type    *string   `json:"value_1_type"`
	Value1Numeric *float64  `json:"value_1_numeric"`
	Value2Type    *string   `json:"value_2_type"`
	Value2Numeric *float64  `json:"value_2_numeric"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session SessionView `json:"session"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Sessions   []SessionView `json:"sessions"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// DeleteSessionResponse confirms a deletion.
type DeleteSessionResponse struct {
	SessionID   string `json:"sessionId"`
	SessionName string `json:"sessionName"`
}

func toSessionView(agg domain.SessionAggregate) SessionView {
	view := SessionView{
		ID:                agg.ID,
		UserID:            agg.UserID,
		TenantID:          agg.TenantID,
		Name:              agg.Name,
		Category:          string(agg.Category),
		Notes:             agg.Notes,
		StartedAt:         agg.StartedAt,
		CompletedAt:       agg.CompletedAt,
		TrainingLoad:      agg.TrainingLoad,
		PerceivedExertion: agg.PerceivedExertion,
		DurationSeconds:   agg.DurationSeconds,
		CreatedAt:         agg.CreatedAt,
		UpdatedAt:         agg.UpdatedAt,
		Exercises:         make([]ExerciseView, 0, len(agg.Exercises)),
	}
	for _, ex := range agg.Exercises {
		ev := ExerciseView{
			ExerciseID:   ex.ID,
			Name:         ex.Name,
			MuscleGroups: ex.MuscleGroups,
			Equipment:    ex.Equipment,
			Category:     string(ex.Category),
			Notes:        ex.Notes,
			Position:     ex.Position,
			Sets:         make([]SetView, 0, len(ex.Sets)),
		}
		if ev.MuscleGroups == nil {
			ev.MuscleGroups = []string{}
		}
		for _, set := range ex.Sets {
			ev.Sets = append(ev.Sets, SetView{
				ID:            set.ID,
				SetIndex:      set.SetIndex,
				Value1Type:    set.Value1.Type,
				Value1Numeric: set.Value1.Value,
				Value2Type:    set.Value2.Type,
				Value2Numeric: set.Value2.Value,
				Notes:         set.Notes,
				CreatedAt:     set.CreatedAt,
			})
		}
		view.Exercises = append(view.Exercises, ev)
	}
	return view
}
