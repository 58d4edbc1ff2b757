package locking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidLockType is returned when a lock type outside the closed
	// enum reaches the manager
	ErrInvalidLockType = errors.New("invalid lock type")

	// ErrHolderRequired is returned when an operation is attempted without
	// a holder identity
	ErrHolderRequired = errors.New("lock holder identity is required")

	// ErrResourceRequired is returned when a resource id is empty
	ErrResourceRequired = errors.New("resource id is required")

	// ErrNoResources is returned when a batch operation receives an empty
	// id list
	ErrNoResources = errors.New("at least one resource id is required")
)

// ConflictError reports that another identity holds a valid lock. It carries
// the holder and expiry so the caller can render "X is editing, try again
// after Y" without a follow-up request.
type ConflictError struct {
	ResourceID string
	Type       LockType
	LockedBy   string
	ExpiresAt  time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lock on %s (%s) is held by %s until %s",
		e.ResourceID, e.Type, e.LockedBy, e.ExpiresAt.Format(time.RFC3339))
}

// IsConflict reports whether err is a lock conflict and returns it typed
func IsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
