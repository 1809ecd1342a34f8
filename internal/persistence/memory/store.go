// Package memory provides an in-process session store for local development
// and tests. Transactions are serialized: Begin takes the store lock and the
// transaction works on a private copy that Commit swaps in.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/allerhed/rythm/internal/domain"
)

var errTxDone = errors.New("memory: transaction already committed or rolled back")

// FaultFunc is consulted before every transactional statement; a non-nil
// result fails that statement. op names the statement, e.g. "insert_set".
type FaultFunc func(op string) error

// Option configures a Store.
type Option func(*Store)

// WithFault installs a fault injector.
func WithFault(fn FaultFunc) Option {
	return func(s *Store) { s.fault = fn }
}

// Store implements domain.Store in memory.
type Store struct {
	mu     sync.Mutex
	state  *state
	events []domain.Event
	fault  FaultFunc
}

// NewStore constructs an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{state: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type state struct {
	sessions  map[string]domain.Session
	exercises map[string]domain.Exercise
	names     map[string]string
	sets      map[string]domain.Set
}

func newState() *state {
	return &state{
		sessions:  make(map[string]domain.Session),
		exercises: make(map[string]domain.Exercise),
		names:     make(map[string]string),
		sets:      make(map[string]domain.Set),
	}
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	for k, v := range st.exercises {
		out.exercises[k] = v
	}
	for k, v := range st.names {
		out.names[k] = v
	}
	for k, v := range st.sets {
		out.sets[k] = v
	}
	return out
}

// Begin implements domain.TxBeginner. The returned transaction holds the
// store lock until Commit or Rollback.
func (s *Store) Begin(ctx context.Context, tenantID string) (domain.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{store: s, tenantID: tenantID, work: s.state.clone()}, nil
}

// GetSession implements domain.Store.
func (s *Store) GetSession(ctx context.Context, sessionID, userID, tenantID string) (*domain.SessionAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.state.sessions[sessionID]
	if !ok || session.UserID != userID || session.TenantID != tenantID {
		return nil, nil
	}
	agg := s.state.assemble(session)
	return &agg, nil
}

// ListSessions implements domain.Store.
func (s *Store) ListSessions(ctx context.Context, userID, tenantID string, filter domain.ListFilter) ([]domain.SessionAggregate, *domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to, byDay := filter.DayBounds()
	matches := make([]domain.Session, 0)
	for _, session := range s.state.sessions {
		if session.UserID != userID || session.TenantID != tenantID {
			continue
		}
		if byDay && (session.StartedAt.Before(from) || !session.StartedAt.Before(to)) {
			continue
		}
		if c := filter.Cursor; c != nil && !before(session, *c) {
			continue
		}
		matches = append(matches, session)
	}
	sort.Slice(matches, func(i, j int) bool {
		return before(matches[j], domain.Cursor{StartedAt: matches[i].StartedAt, ID: matches[i].ID})
	})
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	results := make([]domain.SessionAggregate, 0, len(matches))
	for _, session := range matches {
		results = append(results, s.state.assemble(session))
	}
	var next *domain.Cursor
	if filter.Limit > 0 && len(results) == filter.Limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

// before reports whether session sorts after the cursor position in
// (started_at DESC, id DESC) order.
func before(session domain.Session, c domain.Cursor) bool {
	if !session.StartedAt.Equal(c.StartedAt) {
		return session.StartedAt.Before(c.StartedAt)
	}
	return session.ID < c.ID
}

func (st *state) assemble(session domain.Session) domain.SessionAggregate {
	sets := make([]domain.Set, 0)
	for _, set := range st.sets {
		if set.SessionID == session.ID && set.TenantID == session.TenantID {
			sets = append(sets, set)
		}
	}
	return domain.SessionAggregate{Session: session, Exercises: domain.GroupSets(sets, st.exercises)}
}

// Events returns the committed outbox events in append order.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Exercises returns the catalog sorted by name.
func (s *Store) Exercises() []domain.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Exercise, 0, len(s.state.exercises))
	for _, ex := range s.state.exercises {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetRows returns the stored set rows of a session, regardless of owner.
func (s *Store) SetRows(sessionID string) []domain.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Set, 0)
	for _, set := range s.state.sets {
		if set.SessionID == sessionID {
			out = append(out, set)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type tx struct {
	store    *Store
	tenantID string
	work     *state
	events   []domain.Event
	done     bool
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.state = t.work
	t.store.events = append(t.store.events, t.events...)
	t.store.mu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *tx) check(op string) error {
	if t.done {
		return errTxDone
	}
	if t.store.fault != nil {
		return t.store.fault(op)
	}
	return nil
}

func (t *tx) owned(sessionID, userID, tenantID string) (domain.Session, bool) {
	session, ok := t.work.sessions[sessionID]
	if !ok || session.UserID != userID || session.TenantID != tenantID {
		return domain.Session{}, false
	}
	return session, true
}

func (t *tx) LockOwnedSession(ctx context.Context, sessionID, userID, tenantID string) (*domain.Session, error) {
	if err := t.check("lock_session"); err != nil {
		return nil, err
	}
	session, ok := t.owned(sessionID, userID, tenantID)
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (t *tx) InsertSession(ctx context.Context, session domain.Session) error {
	if err := t.check("insert_session"); err != nil {
		return err
	}
	if session.TenantID != t.tenantID {
		return fmt.Errorf("memory: session tenant %s outside transaction tenant %s", session.TenantID, t.tenantID)
	}
	if _, exists := t.work.sessions[session.ID]; exists {
		return fmt.Errorf("memory: duplicate session %s", session.ID)
	}
	t.work.sessions[session.ID] = session
	return nil
}

func (t *tx) UpdateSession(ctx context.Context, session domain.Session) (int64, error) {
	if err := t.check("update_session"); err != nil {
		return 0, err
	}
	if _, ok := t.owned(session.ID, session.UserID, session.TenantID); !ok {
		return 0, nil
	}
	t.work.sessions[session.ID] = session
	return 1, nil
}

func (t *tx) DeleteSession(ctx context.Context, sessionID, userID, tenantID string) (int64, error) {
	if err := t.check("delete_session"); err != nil {
		return 0, err
	}
	if _, ok := t.owned(sessionID, userID, tenantID); !ok {
		return 0, nil
	}
	delete(t.work.sessions, sessionID)
	for id, set := range t.work.sets {
		if set.SessionID == sessionID {
			delete(t.work.sets, id)
		}
	}
	return 1, nil
}

func (t *tx) DeleteSets(ctx context.Context, sessionID, tenantID string) (int64, error) {
	if err := t.check("delete_sets"); err != nil {
		return 0, err
	}
	var n int64
	for id, set := range t.work.sets {
		if set.SessionID == sessionID && set.TenantID == tenantID {
			delete(t.work.sets, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) ExerciseByID(ctx context.Context, exerciseID string) (*domain.Exercise, error) {
	if err := t.check("exercise_by_id"); err != nil {
		return nil, err
	}
	ex, ok := t.work.exercises[exerciseID]
	if !ok {
		return nil, nil
	}
	return &ex, nil
}

func (t *tx) UpsertExerciseByName(ctx context.Context, candidate domain.Exercise) (domain.Exercise, bool, error) {
	if err := t.check("upsert_exercise"); err != nil {
		return domain.Exercise{}, false, err
	}
	key := strings.ToLower(candidate.Name)
	if id, ok := t.work.names[key]; ok {
		return t.work.exercises[id], false, nil
	}
	if candidate.MuscleGroups == nil {
		candidate.MuscleGroups = []string{}
	}
	t.work.exercises[candidate.ID] = candidate
	t.work.names[key] = candidate.ID
	return candidate, true, nil
}

func (t *tx) InsertSet(ctx context.Context, set domain.Set) error {
	if err := t.check("insert_set"); err != nil {
		return err
	}
	if set.TenantID != t.tenantID {
		return fmt.Errorf("memory: set tenant %s outside transaction tenant %s", set.TenantID, t.tenantID)
	}
	if _, ok := t.work.sessions[set.SessionID]; !ok {
		return fmt.Errorf("memory: set references unknown session %s", set.SessionID)
	}
	if _, ok := t.work.exercises[set.ExerciseID]; !ok {
		return fmt.Errorf("memory: set references unknown exercise %s", set.ExerciseID)
	}
	for _, m := range []domain.Measurement{set.Value1, set.Value2} {
		if m.Value == nil && m.Type != nil {
			return errors.New("memory: measurement type without value")
		}
		if m.Value != nil && *m.Value == 0 {
			return errors.New("memory: zero measurement value")
		}
	}
	for _, other := range t.work.sets {
		if other.SessionID == set.SessionID && other.ExerciseID == set.ExerciseID && other.SetIndex == set.SetIndex {
			return fmt.Errorf("memory: duplicate set_index %d", set.SetIndex)
		}
	}
	t.work.sets[set.ID] = set
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, event domain.Event) error {
	if err := t.check("append_event"); err != nil {
		return err
	}
	t.events = append(t.events, event)
	return nil
}
