package domain

import (
	"context"
	"errors"
)

// TxCoordinator runs aggregate writes as a single all-or-nothing unit.
type TxCoordinator struct {
	beginner TxBeginner
}

// NewTxCoordinator wraps a transaction source.
func NewTxCoordinator(beginner TxBeginner) TxCoordinator {
	return TxCoordinator{beginner: beginner}
}

// Run executes fn inside a transaction. Any error or panic from fn rolls the
// transaction back; panics are re-raised after the rollback. Taxonomy errors
// are returned unchanged, everything else as a *TransactionFailure.
func (c TxCoordinator) Run(ctx context.Context, op, tenantID string, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := c.beginner.Begin(ctx, tenantID)
	if err != nil {
		return &TransactionFailure{Op: op, Cause: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return &TransactionFailure{Op: op, Cause: errors.Join(err, rbErr)}
		}
		return c.classify(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return &TransactionFailure{Op: op, Cause: err}
	}
	committed = true
	return nil
}

func (c TxCoordinator) classify(op string, err error) error {
	if classifier, ok := c.beginner.(ErrorClassifier); ok {
		err = classifier.ClassifyError(err)
	}
	if IsTaxonomy(err) {
		return err
	}
	return &TransactionFailure{Op: op, Cause: err}
}
