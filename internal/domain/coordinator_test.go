package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	err      error
	classify func(error) error
}

func (f *fakeBeginner) Begin(context.Context, string) (Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

type classifyingBeginner struct{ *fakeBeginner }

func (c classifyingBeginner) ClassifyError(err error) error { return c.classify(err) }

func TestTxCoordinatorCommits(t *testing.T) {
	tx := &fakeTx{}
	c := NewTxCoordinator(&fakeBeginner{tx: tx})

	err := c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
}

func TestTxCoordinatorPassesTaxonomyErrorsThrough(t *testing.T) {
	for _, want := range []error{
		ErrNotFoundOrAccessDenied,
		ErrAuthentication,
		&ValidationError{Field: "name", Message: "is required"},
	} {
		tx := &fakeTx{}
		c := NewTxCoordinator(&fakeBeginner{tx: tx})
		err := c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error { return want })
		require.Same(t, want, err)
		require.True(t, tx.rolledBack)
		require.False(t, tx.committed)
	}
}

func TestTxCoordinatorWrapsStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	tx := &fakeTx{}
	c := NewTxCoordinator(&fakeBeginner{tx: tx})

	err := c.Run(context.Background(), "session.create", "tenant", func(context.Context, Tx) error { return boom })
	var tf *TransactionFailure
	require.ErrorAs(t, err, &tf)
	require.Equal(t, "session.create", tf.Op)
	require.ErrorIs(t, err, boom)
	require.True(t, tx.rolledBack)
}

func TestTxCoordinatorBeginAndCommitFailures(t *testing.T) {
	c := NewTxCoordinator(&fakeBeginner{err: errors.New("pool closed")})
	err := c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	var tf *TransactionFailure
	require.ErrorAs(t, err, &tf)

	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	c = NewTxCoordinator(&fakeBeginner{tx: tx})
	err = c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error { return nil })
	require.ErrorAs(t, err, &tf)
}

func TestTxCoordinatorRollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	c := NewTxCoordinator(&fakeBeginner{tx: tx})

	require.PanicsWithValue(t, "kaboom", func() {
		_ = c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error { panic("kaboom") })
	})
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
}

func TestTxCoordinatorUsesClassifier(t *testing.T) {
	tx := &fakeTx{}
	b := classifyingBeginner{&fakeBeginner{tx: tx, classify: func(err error) error {
		return &ValidationError{Field: "sets", Message: err.Error()}
	}}}
	c := NewTxCoordinator(b)

	err := c.Run(context.Background(), "op", "tenant", func(context.Context, Tx) error { return errors.New("check violation") })
	require.ErrorIs(t, err, ErrValidation)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "success", Outcome(nil))
	require.Equal(t, "validation", Outcome(invalid("name", "is required")))
	require.Equal(t, "not_found", Outcome(ErrNotFoundOrAccessDenied))
	require.Equal(t, "unauthenticated", Outcome(ErrAuthentication))
	require.Equal(t, "transaction_failure", Outcome(&TransactionFailure{Op: "x", Cause: errors.New("y")}))
}
