package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/allerhed/rythm/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// ClassifyError implements domain.ErrorClassifier. Constraint violations on
// set rows are client errors; anything else is left for the coordinator to
// wrap as a transaction failure.
func (s *Store) ClassifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.TableName != "session_sets" {
		return err
	}

	switch pgErr.Code {
	case uniqueViolation:
		return &domain.ValidationError{Field: "sets.set_index", Message: "duplicate set_index for exercise"}
	case foreignKeyViolation:
		return &domain.ValidationError{Field: "exercises.exercise_id", Message: "unknown exercise"}
	case checkViolation:
		return &domain.ValidationError{Field: "sets", Message: "violates " + pgErr.ConstraintName}
	default:
		return err
	}
}
