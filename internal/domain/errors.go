package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication indicates the caller's user or tenant identity is missing or malformed.
	ErrAuthentication = errors.New("authentication required")
	// ErrNotFoundOrAccessDenied is returned both for missing sessions and for
	// sessions owned by someone else. The two cases are never distinguished.
	ErrNotFoundOrAccessDenied = errors.New("session not found")
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a client payload problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransactionFailure wraps any non-taxonomy failure raised while an aggregate
// operation was running. Cause is meant for server-side logs only.
type TransactionFailure struct {
	Op    string
	Cause error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Cause)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Cause
}

// IsTaxonomy reports whether err is one of the client-facing error kinds that
// pass through the transaction coordinator unchanged.
func IsTaxonomy(err error) bool {
	var tf *TransactionFailure
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFoundOrAccessDenied) ||
		errors.Is(err, ErrAuthentication) ||
		errors.As(err, &tf)
}

// Outcome maps an operation result onto a low-cardinality metric label.
func Outcome(err error) string {
	var tf *TransactionFailure
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &tf):
		return "transaction_failure"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFoundOrAccessDenied):
		return "not_found"
	case errors.Is(err, ErrAuthentication):
		return "unauthenticated"
	default:
		return "error"
	}
}
