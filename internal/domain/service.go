package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/allerhed/rythm/internal/observability"
)

// Service orchestrates session aggregate workflows.
type Service struct {
	store  Store
	tx     TxCoordinator
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     NewTxCoordinator(store),
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/allerhed/rythm/internal/domain"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession validates and persists a new session aggregate in one transaction.
func (s *Service) CreateSession(ctx context.Context, userID, tenantID string, in SessionInput) (_ *SessionAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "session.create")
	started := time.Now()
	defer func() { s.finish(span, "create", started, err) }()

	p, err := NewPrincipal(userID, tenantID)
	if err != nil {
		return nil, err
	}
	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if in.Category == nil {
		return nil, invalid("category", "is required")
	}
	category, err := ParseCategory(*in.Category)
	if err != nil {
		return nil, invalid("category", "%s", err.Error())
	}
	if err := in.validateMetrics(); err != nil {
		return nil, err
	}
	if err := validateExercises(in.Exercises); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := Session{
		ID:                s.newID(),
		UserID:            p.UserID,
		TenantID:          p.TenantID,
		Name:              name,
		Category:          category,
		StartedAt:         now,
		CompletedAt:       utc(in.CompletedAt),
		TrainingLoad:      in.TrainingLoad,
		PerceivedExertion: in.PerceivedExertion,
		DurationSeconds:   s.durationSeconds(in.Duration),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.Notes != nil {
		session.Notes = *in.Notes
	}
	if in.StartedAt != nil {
		session.StartedAt = in.StartedAt.UTC()
	}
	if err := session.validateTimes(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.String("tenant.id", p.TenantID))

	var (
		result    SessionAggregate
		cataloged int
	)
	err = s.tx.Run(ctx, "session.create", p.TenantID, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}
		exercises, created, err := s.writeExercises(ctx, tx, session, in.Exercises, now)
		if err != nil {
			return err
		}
		cataloged = created
		result = SessionAggregate{Session: session, Exercises: exercises}
		return tx.AppendEvent(ctx, sessionWrittenEvent(EventSessionCreated, result, now))
	})
	if err != nil {
		return nil, err
	}

	s.committed("create", result, in.Exercises, cataloged, now)
	return &result, nil
}

// GetSession returns the session aggregate when the caller owns it.
func (s *Service) GetSession(ctx context.Context, sessionID, userID, tenantID string) (_ *SessionAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "session.read")
	started := time.Now()
	defer func() { s.finish(span, "read", started, err) }()

	p, err := NewPrincipal(userID, tenantID)
	if err != nil {
		return nil, err
	}
	id, err := sessionKey(sessionID)
	if err != nil {
		return nil, err
	}
	agg, err := s.store.GetSession(ctx, id, p.UserID, p.TenantID)
	if err != nil {
		return nil, &TransactionFailure{Op: "session.read", Cause: err}
	}
	if agg == nil {
		return nil, ErrNotFoundOrAccessDenied
	}
	return agg, nil
}

// ListSessions pages through the caller's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID, tenantID string, filter ListFilter) (_ []SessionAggregate, _ *Cursor, err error) {
	ctx, span := s.tracer.Start(ctx, "session.list")
	started := time.Now()
	defer func() { s.finish(span, "list", started, err) }()

	p, err := NewPrincipal(userID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	sessions, next, err := s.store.ListSessions(ctx, p.UserID, p.TenantID, filter.normalized())
	if err != nil {
		return nil, nil, &TransactionFailure{Op: "session.list", Cause: err}
	}
	return sessions, next, nil
}

// UpdateSession replaces the session's exercises and sets and coalesces its
// metadata. Absent fields keep their stored values, except name which is
// always overwritten.
func (s *Service) UpdateSession(ctx context.Context, sessionID, userID, tenantID string, in SessionInput) (_ *SessionAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "session.update")
	started := time.Now()
	defer func() { s.finish(span, "update", started, err) }()

	p, err := NewPrincipal(userID, tenantID)
	if err != nil {
		return nil, err
	}
	id, err := sessionKey(sessionID)
	if err != nil {
		return nil, err
	}
	var category *Category
	if in.Category != nil {
		parsed, err := ParseCategory(*in.Category)
		if err != nil {
			return nil, invalid("category", "%s", err.Error())
		}
		category = &parsed
	}
	if err := in.validateMetrics(); err != nil {
		return nil, err
	}
	if err := validateExercises(in.Exercises); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", id), attribute.String("tenant.id", p.TenantID))

	now := s.now().UTC()
	var (
		result    SessionAggregate
		cataloged int
	)
	err = s.tx.Run(ctx, "session.update", p.TenantID, func(ctx context.Context, tx Tx) error {
		existing, err := guardOwned(ctx, tx, id, p)
		if err != nil {
			return err
		}
		updated := s.coalesce(*existing, in, category, now)
		if err := updated.validateTimes(); err != nil {
			return err
		}
		if err := expectOne(tx.UpdateSession(ctx, updated)); err != nil {
			return err
		}
		if _, err := tx.DeleteSets(ctx, id, p.TenantID); err != nil {
			return err
		}
		exercises, created, err := s.writeExercises(ctx, tx, updated, in.Exercises, now)
		if err != nil {
			return err
		}
		cataloged = created
		result = SessionAggregate{Session: updated, Exercises: exercises}
		return tx.AppendEvent(ctx, sessionWrittenEvent(EventSessionUpdated, result, now))
	})
	if err != nil {
		return nil, err
	}

	s.committed("update", result, in.Exercises, cataloged, now)
	return &result, nil
}

// DeleteSession removes the session and its sets. It returns the canonical
// session id and the deleted session's name.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID, tenantID string) (_, _ string, err error) {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	started := time.Now()
	defer func() { s.finish(span, "delete", started, err) }()

	p, err := NewPrincipal(userID, tenantID)
	if err != nil {
		return "", "", err
	}
	id, err := sessionKey(sessionID)
	if err != nil {
		return "", "", err
	}

	now := s.now().UTC()
	var name string
	err = s.tx.Run(ctx, "session.delete", p.TenantID, func(ctx context.Context, tx Tx) error {
		existing, err := guardOwned(ctx, tx, id, p)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteSets(ctx, id, p.TenantID); err != nil {
			return err
		}
		if err := expectOne(tx.DeleteSession(ctx, id, p.UserID, p.TenantID)); err != nil {
			return err
		}
		name = existing.Name
		return tx.AppendEvent(ctx, sessionDeletedEvent(*existing, now))
	})
	if err != nil {
		return "", "", err
	}

	s.logger.Info("session deleted", zap.String("session_id", id), zap.String("tenant_id", p.TenantID))
	return id, name, nil
}

// writeExercises resolves each submitted exercise in order and inserts its
// sets with normalized measurements and synthesized timestamps. It returns the
// exercises-in-context and the number of catalog rows created. An exercise
// submitted without sets is still cataloged but is not part of the session,
// matching what a read reassembles from the stored sets.
func (s *Service) writeExercises(ctx context.Context, tx Tx, session Session, inputs []ExerciseInput, base time.Time) ([]SessionExercise, int, error) {
	if exceedsOrderingBudget(inputs) {
		s.logger.Warn("session exceeds timestamp ordering budget, reads rely on exercise_position",
			zap.String("session_id", session.ID),
			zap.Int("exercises", len(inputs)),
		)
	}

	resolver := newExerciseResolver(tx, session.TenantID, session.Category, s.newID, base)
	out := make([]SessionExercise, 0, len(inputs))
	slots := make(map[string]int)
	indexes := make(map[string]*setIndexer)

	for i, in := range inputs {
		ex, err := resolver.resolve(ctx, in)
		if err != nil {
			return nil, 0, err
		}
		if len(in.Sets) == 0 {
			continue
		}
		slot, seen := slots[ex.ID]
		if !seen {
			out = append(out, SessionExercise{Exercise: ex, Position: i})
			slot = len(out) - 1
			slots[ex.ID] = slot
			indexes[ex.ID] = &setIndexer{used: make(map[int]bool)}
		}

		for j, setIn := range in.Sets {
			if setIn.Value1.Variant == VariantLegacy || setIn.Value2.Variant == VariantLegacy {
				s.logger.Debug("set uses legacy measurement field names",
					zap.String("session_id", session.ID),
					zap.Stringer("value_1", setIn.Value1.Variant),
					zap.Stringer("value_2", setIn.Value2.Variant),
				)
			}
			index, err := indexes[ex.ID].next(setIn.SetIndex, ex.Name)
			if err != nil {
				return nil, 0, err
			}
			set := Set{
				ID:               s.newID(),
				SessionID:        session.ID,
				ExerciseID:       ex.ID,
				TenantID:         session.TenantID,
				ExercisePosition: i,
				SetIndex:         index,
				Value1:           NormalizeMeasurement(setIn.Value1),
				Value2:           NormalizeMeasurement(setIn.Value2),
				Notes:            strings.TrimSpace(setIn.Notes),
				CreatedAt:        SynthesizeSetTime(base, i, j),
			}
			if err := tx.InsertSet(ctx, set); err != nil {
				return nil, 0, err
			}
			out[slot].Sets = append(out[slot].Sets, set)
		}
	}

	for i := range out {
		sortSets(out[i].Sets)
	}
	return out, len(resolver.created), nil
}

// setIndexer hands out set indexes for one exercise within one operation.
type setIndexer struct {
	used map[int]bool
	max  int
}

func (x *setIndexer) next(requested *int, exercise string) (int, error) {
	index := x.max + 1
	if requested != nil {
		index = *requested
	}
	if index < 1 {
		return 0, invalid("sets.set_index", "must be at least 1")
	}
	if x.used[index] {
		return 0, invalid("sets.set_index", "duplicate set_index %d for exercise %q", index, exercise)
	}
	x.used[index] = true
	if index > x.max {
		x.max = index
	}
	return index, nil
}

func (s *Service) coalesce(existing Session, in SessionInput, category *Category, now time.Time) Session {
	out := existing
	out.Name = ""
	if in.Name != nil {
		out.Name = strings.TrimSpace(*in.Name)
	}
	if category != nil {
		out.Category = *category
	}
	if in.Notes != nil {
		out.Notes = *in.Notes
	}
	if in.StartedAt != nil {
		out.StartedAt = in.StartedAt.UTC()
	}
	if in.CompletedAt != nil {
		out.CompletedAt = utc(in.CompletedAt)
	}
	if in.TrainingLoad != nil {
		out.TrainingLoad = in.TrainingLoad
	}
	if in.PerceivedExertion != nil {
		out.PerceivedExertion = in.PerceivedExertion
	}
	if in.Duration != nil {
		out.DurationSeconds = s.durationSeconds(in.Duration)
	}
	out.UpdatedAt = now
	return out
}

func (s *Service) durationSeconds(raw *string) int {
	fallback := int(DefaultSessionDuration / time.Second)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return fallback
	}
	d, ok := ParseSessionDuration(*raw)
	if !ok {
		s.logger.Warn("unparseable or out of range session duration, using default", zap.String("duration", *raw))
		return fallback
	}
	return int(d / time.Second)
}

func (s *Service) committed(op string, agg SessionAggregate, inputs []ExerciseInput, cataloged int, at time.Time) {
	observability.RecordSessionPersisted(at, agg.SetCount())
	observability.RecordExercisesCataloged(cataloged)
	for variant, n := range fieldVariants(inputs) {
		observability.RecordMeasurementFields(variant.String(), n)
	}
	s.logger.Info("session persisted",
		zap.String("operation", op),
		zap.String("session_id", agg.ID),
		zap.String("tenant_id", agg.TenantID),
		zap.Int("exercises", len(agg.Exercises)),
		zap.Int("sets", agg.SetCount()),
		zap.Int("cataloged", cataloged),
	)
}

func (s *Service) finish(span trace.Span, op string, started time.Time, err error) {
	defer span.End()
	outcome := Outcome(err)
	observability.ObserveSessionOperation(op, outcome, time.Since(started))
	span.SetAttributes(attribute.String("outcome", outcome))
	if err == nil {
		return
	}

	var tf *TransactionFailure
	if errors.As(err, &tf) {
		span.RecordError(tf.Cause)
		span.SetStatus(codes.Error, tf.Op)
		s.logger.Error("session operation failed", zap.String("operation", tf.Op), zap.Error(tf.Cause))
		return
	}
	s.logger.Debug("session operation rejected", zap.String("operation", op), zap.String("outcome", outcome), zap.Error(err))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
