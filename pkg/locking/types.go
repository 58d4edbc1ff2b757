// Package locking implements the pessimistic record-locking protocol that
// serializes concurrent edits to shared records across stateless server
// instances. Locks are typed, time-bounded rows in a shared PostgreSQL
// table; the database clock is the single source of truth for expiry.
package locking

import (
	"fmt"
	"time"
)

// LockType is the purpose-scoped category of a lock. Locks of different
// types on the same resource are independent and never conflict with each
// other.
type LockType string

const (
	// LockTypeEdit guards general field editing
	LockTypeEdit LockType = "EDIT"
	// LockTypeStatus guards status transitions
	LockTypeStatus LockType = "STATUS"
	// LockTypeAssign guards driver assignment
	LockTypeAssign LockType = "ASSIGN"
)

// ParseLockType validates a lock type received at the boundary. Unknown
// values are rejected rather than stored as free strings.
func ParseLockType(raw string) (LockType, error) {
	switch LockType(raw) {
	case LockTypeEdit, LockTypeStatus, LockTypeAssign:
		return LockType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLockType, raw)
	}
}

// Lock is one row of the lock table: exclusive, time-bounded permission on
// one aspect of one resource for one holder.
type Lock struct {
	ResourceID string    `json:"resource_id"`
	Type       LockType  `json:"lock_type"`
	LockedBy   string    `json:"locked_by"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Active reports whether the lock still blocks other holders at the given
// instant. An expired row is inert and treated as absent for acquisition.
func (l *Lock) Active(now time.Time) bool {
	return l != nil && now.Before(l.ExpiresAt)
}

// State is the read-only view of a lock key returned by Inspect, used by
// the UI to show lock ownership before attempting acquire.
type State struct {
	IsLocked  bool       `json:"is_locked"`
	LockedBy  string     `json:"locked_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
