package domain

import "context"

// guardOwned locks the session for the remainder of tx when the caller owns
// it. Absent and foreign sessions both yield ErrNotFoundOrAccessDenied.
func guardOwned(ctx context.Context, tx Tx, sessionID string, p Principal) (*Session, error) {
	session, err := tx.LockOwnedSession(ctx, sessionID, p.UserID, p.TenantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFoundOrAccessDenied
	}
	return session, nil
}

// expectOne turns an owner-filtered statement that touched no row into
// ErrNotFoundOrAccessDenied.
func expectOne(affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNotFoundOrAccessDenied
	}
	return nil
}
