package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/allerhed/rythm/internal/domain"
	"github.com/allerhed/rythm/internal/outbox"
)

const selectSessionSQL = `SELECT session_id, user_id, tenant_id, name, category, notes, started_at, completed_at,
        training_load, perceived_exertion, duration_seconds, created_at, updated_at
        FROM training_sessions`

const selectExerciseSQL = `SELECT exercise_id, name, muscle_groups, equipment, category, notes, created_at FROM exercises`

// sessionTx implements domain.Tx on a pgx transaction.
type sessionTx struct {
	tx pgx.Tx
}

func (t *sessionTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *sessionTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *sessionTx) LockOwnedSession(ctx context.Context, sessionID, userID, tenantID string) (*domain.Session, error) {
	session, err := scanSession(t.tx.QueryRow(ctx,
		selectSessionSQL+` WHERE session_id=$1 AND user_id=$2 AND tenant_id=$3 FOR UPDATE`,
		sessionID, userID, tenantID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (t *sessionTx) InsertSession(ctx context.Context, s domain.Session) error {
	const stmt = `INSERT INTO training_sessions (session_id, user_id, tenant_id, name, category, notes, started_at, completed_at,
        training_load, perceived_exertion, duration_seconds, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := t.tx.Exec(ctx, stmt,
		s.ID,
		s.UserID,
		s.TenantID,
		s.Name,
		string(s.Category),
		s.Notes,
		s.StartedAt,
		s.CompletedAt,
		s.TrainingLoad,
		s.PerceivedExertion,
		s.DurationSeconds,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (t *sessionTx) UpdateSession(ctx context.Context, s domain.Session) (int64, error) {
	const stmt = `UPDATE training_sessions
           SET name=$4, category=$5, notes=$6, started_at=$7, completed_at=$8,
               training_load=$9, perceived_exertion=$10, duration_seconds=$11, updated_at=$12
         WHERE session_id=$1 AND user_id=$2 AND tenant_id=$3`

	tag, err := t.tx.Exec(ctx, stmt,
		s.ID,
		s.UserID,
		s.TenantID,
		s.Name,
		string(s.Category),
		s.Notes,
		s.StartedAt,
		s.CompletedAt,
		s.TrainingLoad,
		s.PerceivedExertion,
		s.DurationSeconds,
		s.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *sessionTx) DeleteSession(ctx context.Context, sessionID, userID, tenantID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM training_sessions WHERE session_id=$1 AND user_id=$2 AND tenant_id=$3`, sessionID, userID, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *sessionTx) DeleteSets(ctx context.Context, sessionID, tenantID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM session_sets WHERE session_id=$1 AND tenant_id=$2`, sessionID, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *sessionTx) ExerciseByID(ctx context.Context, exerciseID string) (*domain.Exercise, error) {
	ex, err := scanExercise(t.tx.QueryRow(ctx, selectExerciseSQL+` WHERE exercise_id=$1`, exerciseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// UpsertExerciseByName relies on the unique index over lower(name). The no-op
// DO UPDATE locks and returns the existing row; xmax = 0 only for fresh inserts.
func (t *sessionTx) UpsertExerciseByName(ctx context.Context, c domain.Exercise) (domain.Exercise, bool, error) {
	const stmt = `INSERT INTO exercises (exercise_id, name, muscle_groups, equipment, category, notes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT ((lower(name))) DO UPDATE SET name = exercises.name
        RETURNING exercise_id, name, muscle_groups, equipment, category, notes, created_at, (xmax = 0) AS inserted`

	groups := c.MuscleGroups
	if groups == nil {
		groups = []string{}
	}
	var (
		ex       domain.Exercise
		category string
		inserted bool
	)
	err := t.tx.QueryRow(ctx, stmt, c.ID, c.Name, groups, c.Equipment, string(c.Category), c.Notes, c.CreatedAt).
		Scan(&ex.ID, &ex.Name, &ex.MuscleGroups, &ex.Equipment, &category, &ex.Notes, &ex.CreatedAt, &inserted)
	if err != nil {
		return domain.Exercise{}, false, err
	}
	ex.Category = domain.Category(category)
	return ex, inserted, nil
}

func (t *sessionTx) InsertSet(ctx context.Context, s domain.Set) error {
	const stmt = `INSERT INTO session_sets (set_id, session_id, exercise_id, tenant_id, exercise_position, set_index,
        value_1_type, value_1_numeric, value_2_type, value_2_numeric, notes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := t.tx.Exec(ctx, stmt,
		s.ID,
		s.SessionID,
		s.ExerciseID,
		s.TenantID,
		s.ExercisePosition,
		s.SetIndex,
		s.Value1.Type,
		s.Value1.Value,
		s.Value2.Type,
		s.Value2.Value,
		s.Notes,
		s.CreatedAt,
	)
	return err
}

func (t *sessionTx) AppendEvent(ctx context.Context, event domain.Event) error {
	return outbox.Record(ctx, t.tx, event)
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s        domain.Session
		category string
		load     *int32
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.TenantID, &s.Name, &category, &s.Notes, &s.StartedAt, &s.CompletedAt,
		&load, &s.PerceivedExertion, &s.DurationSeconds, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Session{}, err
	}
	s.Category = domain.Category(category)
	if load != nil {
		v := int(*load)
		s.TrainingLoad = &v
	}
	s.StartedAt = s.StartedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.CompletedAt != nil {
		v := s.CompletedAt.UTC()
		s.CompletedAt = &v
	}
	return s, nil
}

func scanExercise(row pgx.Row) (domain.Exercise, error) {
	var (
		ex       domain.Exercise
		category string
	)
	if err := row.Scan(&ex.ID, &ex.Name, &ex.MuscleGroups, &ex.Equipment, &category, &ex.Notes, &ex.CreatedAt); err != nil {
		return domain.Exercise{}, err
	}
	ex.Category = domain.Category(category)
	return ex, nil
}

// loadAggregates attaches exercises and sets to each session with one query.
func loadAggregates(ctx context.Context, tx pgx.Tx, tenantID string, sessions []domain.Session) ([]domain.SessionAggregate, error) {
	out := make([]domain.SessionAggregate, 0, len(sessions))
	if len(sessions) == 0 {
		return out, nil
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}

	const query = `SELECT ss.set_id, ss.session_id, ss.exercise_id, ss.tenant_id, ss.exercise_position, ss.set_index,
        ss.value_1_type, ss.value_1_numeric, ss.value_2_type, ss.value_2_numeric, ss.notes, ss.created_at,
        e.name, e.muscle_groups, e.equipment, e.category, e.notes, e.created_at
        FROM session_sets ss
        JOIN exercises e ON e.exercise_id = ss.exercise_id
        WHERE ss.session_id = ANY($1) AND ss.tenant_id = $2
        ORDER BY ss.session_id, ss.exercise_position, ss.created_at, ss.set_index`

	rows, err := tx.Query(ctx, query, ids, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := make(map[string][]domain.Set, len(sessions))
	catalog := make(map[string]domain.Exercise)
	for rows.Next() {
		var (
			set      domain.Set
			ex       domain.Exercise
			category string
		)
		if err := rows.Scan(&set.ID, &set.SessionID, &set.ExerciseID, &set.TenantID, &set.ExercisePosition, &set.SetIndex,
			&set.Value1.Type, &set.Value1.Value, &set.Value2.Type, &set.Value2.Value, &set.Notes, &set.CreatedAt,
			&ex.Name, &ex.MuscleGroups, &ex.Equipment, &category, &ex.Notes, &ex.CreatedAt); err != nil {
			return nil, err
		}
		set.CreatedAt = set.CreatedAt.UTC()
		ex.ID = set.ExerciseID
		ex.Category = domain.Category(category)
		catalog[ex.ID] = ex
		sets[set.SessionID] = append(sets[set.SessionID], set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range sessions {
		out = append(out, domain.SessionAggregate{Session: s, Exercises: domain.GroupSets(sets[s.ID], catalog)})
	}
	return out, nil
}
