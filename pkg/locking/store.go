package locking

import (
	"context"
	"time"
)

// Store fronts the lock table. All methods that run inside a transaction
// rely on the caller's ambient transaction in ctx; the manager owns
// transaction boundaries, the store only issues statements.
//
// Implementations must read time from the same clock that backs the stored
// expiry timestamps. The production store asks PostgreSQL, so expiry
// comparisons are immune to application-host clock skew.
type Store interface {
	// Now returns the clock the store's timestamps are compared against
	Now(ctx context.Context) (time.Time, error)

	// Get returns the lock row for the key, or nil if no row exists.
	// Expired rows are returned as-is; the caller decides what expiry means.
	Get(ctx context.Context, resourceID string, lockType LockType) (*Lock, error)

	// GetForUpdate is Get with a row-level lock, serializing concurrent
	// acquire attempts on the same key. Must run inside a transaction.
	GetForUpdate(ctx context.Context, resourceID string, lockType LockType) (*Lock, error)

	// Upsert inserts the lock row or overwrites an existing row for the
	// same (resource_id, lock_type) key
	Upsert(ctx context.Context, lock *Lock) error

	// Delete removes the lock row for the key. Deleting a missing row is
	// not an error.
	Delete(ctx context.Context, resourceID string, lockType LockType) error

	// DeleteForResource removes every lock row for a resource, across all
	// lock types. Called when the resource itself is deleted.
	DeleteForResource(ctx context.Context, resourceID string) (int64, error)

	// DeleteExpired removes every row whose expiry has passed and returns
	// the number of rows removed
	DeleteExpired(ctx context.Context) (int64, error)
}
