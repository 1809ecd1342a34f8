package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/allerhed/rythm/internal/domain"
)

// SessionRequest is the payload for POST /sessions and PUT /sessions/{id}.
type SessionRequest struct {
	Name              *string           `json:"name"`
	Category          *string           `json:"category"`
	Notes             *string           `json:"notes"`
	TrainingLoad      *int              `json:"training_load"`
	PerceivedExertion *float64          `json:"perceived_exertion"`
	Duration          *DurationField    `json:"duration"`
	StartedAt         *time.Time        `json:"started_at"`
	CompletedAt       *time.Time        `json:"completed_at"`
	Exercises         []ExerciseRequest `json:"exercises"`
}

// ExerciseRequest references an exercise by id or by name.
type ExerciseRequest struct {
	ExerciseID   string       `json:"exercise_id"`
	Name         string       `json:"name"`
	MuscleGroups []string     `json:"muscle_groups"`
	Equipment    string       `json:"equipment"`
	Category     string       `json:"category"`
	Notes        string       `json:"notes"`
	Sets         []SetRequest `json:"sets"`
}

// SetRequest is one submitted set. Each measurement value may be spelled
// value_N_numeric or valueN; the first spelling wins when both carry a value.
type SetRequest struct {
	SetIndex *int
	Value1   domain.RawMeasurement
	Value2   domain.RawMeasurement
	Notes    string
}

type setWire struct {
	SetIndex      *int            `json:"set_index"`
	Value1Type    *string         `json:"value_1_type"`
	Value1Numeric json.RawMessage `json:"value_1_numeric"`
	Value1        json.RawMessage `json:"value1"`
	Value2Type    *string         `json:"value_2_type"`
	Value2Numeric json.RawMessage `json:"value_2_numeric"`
	Value2        json.RawMessage `json:"value2"`
	Notes         string          `json:"notes"`
}

// UnmarshalJSON resolves the measurement field spellings once, at the boundary.
func (s *SetRequest) UnmarshalJSON(data []byte) error {
	var wire setWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v1, err := resolveMeasurement(wire.Value1Type, wire.Value1Numeric, wire.Value1)
	if err != nil {
		return fmt.Errorf("value_1: %w", err)
	}
	v2, err := resolveMeasurement(wire.Value2Type, wire.Value2Numeric, wire.Value2)
	if err != nil {
		return fmt.Errorf("value_2: %w", err)
	}
	*s = SetRequest{SetIndex: wire.SetIndex, Value1: v1, Value2: v2, Notes: wire.Notes}
	return nil
}

func resolveMeasurement(kind *string, canonical, legacy json.RawMessage) (domain.RawMeasurement, error) {
	out := domain.RawMeasurement{Type: kind}
	raw := canonical
	out.Variant = domain.VariantCanonical
	if isNull(raw) {
		raw = legacy
		out.Variant = domain.VariantLegacy
	}
	if isNull(raw) {
		out.Variant = domain.VariantNone
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return domain.RawMeasurement{}, err
	}
	switch value.(type) {
	case json.Number, string:
	default:
		return domain.RawMeasurement{}, fmt.Errorf("numeric value expected, got %s", raw)
	}
	out.Value = domain.ParseNumeric(value)
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DurationField accepts either a string ("1h30m", "45 minutes") or a bare
// number of minutes.
type DurationField string

// UnmarshalJSON implements json.Unmarshaler.
func (d *DurationField) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = DurationField(text)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or number")
	}
	*d = DurationField(n.String())
	return nil
}

func (r SessionRequest) toInput() domain.SessionInput {
	in := domain.SessionInput{
		Name:              r.Name,
		Category:          r.Category,
		Notes:             r.Notes,
		TrainingLoad:      r.TrainingLoad,
		PerceivedExertion: r.PerceivedExertion,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
	if r.Duration != nil {
		raw := strings.TrimSpace(string(*r.Duration))
		in.Duration = &raw
	}
	in.Exercises = make([]domain.ExerciseInput, 0, len(r.Exercises))
	for _, ex := range r.Exercises {
		sets := make([]domain.SetInput, 0, len(ex.Sets))
		for _, set := range ex.Sets {
			sets = append(sets, domain.SetInput{
				SetIndex: set.SetIndex,
				Value1:   set.Value1,
				Value2:   set.Value2,
				Notes:    set.Notes,
			})
		}
		in.Exercises = append(in.Exercises, domain.ExerciseInput{
			ExerciseID:   ex.ExerciseID,
			Name:         ex.Name,
			MuscleGroups: ex.MuscleGroups,
			Equipment:    ex.Equipment,
			Category:     ex.Category,
			Notes:        ex.Notes,
			Sets:         sets,
		})
	}
	return in
}
