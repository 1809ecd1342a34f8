package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// exerciseResolver maps exercise references to catalog identities for the
// duration of one write operation.
type exerciseResolver struct {
	tx       Tx
	tenantID string
	fallback Category
	newID    func() string
	now      time.Time

	byID    map[string]Exercise
	byName  map[string]Exercise
	created []Exercise
}

func newExerciseResolver(tx Tx, tenantID string, fallback Category, newID func() string, now time.Time) *exerciseResolver {
	return &exerciseResolver{
		tx:       tx,
		tenantID: tenantID,
		fallback: fallback,
		newID:    newID,
		now:      now,
		byID:     make(map[string]Exercise),
		byName:   make(map[string]Exercise),
	}
}

func (r *exerciseResolver) resolve(ctx context.Context, in ExerciseInput) (Exercise, error) {
	if ref := strings.TrimSpace(in.ExerciseID); ref != "" {
		return r.resolveID(ctx, ref)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Exercise{}, invalid("exercises", "an exercise_id or a name is required")
	}
	return r.resolveName(ctx, name, in)
}

func (r *exerciseResolver) resolveID(ctx context.Context, ref string) (Exercise, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return Exercise{}, invalid("exercises.exercise_id", "malformed exercise id %q", ref)
	}
	key := id.String()
	if ex, ok := r.byID[key]; ok {
		return ex, nil
	}
	ex, err := r.tx.ExerciseByID(ctx, key)
	if err != nil {
		return Exercise{}, err
	}
	if ex == nil {
		return Exercise{}, invalid("exercises.exercise_id", "unknown exercise %s", key)
	}
	r.remember(*ex)
	return *ex, nil
}

func (r *exerciseResolver) resolveName(ctx context.Context, name string, in ExerciseInput) (Exercise, error) {
	key := strings.ToLower(name)
	if ex, ok := r.byName[key]; ok {
		return ex, nil
	}

	category := r.fallback
	if in.Category != "" {
		parsed, err := ParseCategory(in.Category)
		if err != nil {
			return Exercise{}, invalid("exercises.category", "%s", err.Error())
		}
		category = parsed
	}
	candidate := Exercise{
		ID:           r.newID(),
		Name:         name,
		MuscleGroups: cleanList(in.MuscleGroups),
		Equipment:    strings.TrimSpace(in.Equipment),
		Category:     category,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    r.now,
	}
	ex, created, err := r.tx.UpsertExerciseByName(ctx, candidate)
	if err != nil {
		return Exercise{}, err
	}
	if created {
		r.created = append(r.created, ex)
		if err := r.tx.AppendEvent(ctx, exerciseCatalogedEvent(ex, r.tenantID)); err != nil {
			return Exercise{}, err
		}
	}
	r.remember(ex)
	return ex, nil
}

func (r *exerciseResolver) remember(ex Exercise) {
	r.byID[ex.ID] = ex
	r.byName[strings.ToLower(ex.Name)] = ex
}
