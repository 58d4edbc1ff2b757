package locking

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var lockColumns = []string{"resource_id", "lock_type", "locked_by", "acquired_at", "expires_at"}

func TestPostgresStore_Now(t *testing.T) {
	store, mock := newMockStore(t)
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT NOW\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(want))

	got, err := store.Now(context.Background())
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("now = %v, want %v", got, want)
	}
}

func TestPostgresStore_GetForUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	acquired := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := acquired.Add(300 * time.Second)

	mock.ExpectQuery(`SELECT resource_id, lock_type, locked_by, acquired_at, expires_at FROM resource_locks WHERE resource_id = \$1 AND lock_type = \$2 FOR UPDATE`).
		WithArgs("order:42", "EDIT").
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow("order:42", "EDIT", "alice", acquired, expires))

	lock, err := store.GetForUpdate(context.Background(), "order:42", LockTypeEdit)
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if lock.LockedBy != "alice" || lock.Type != LockTypeEdit {
		t.Fatalf("lock = %+v", lock)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_GetAbsentRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT resource_id, lock_type, locked_by, acquired_at, expires_at FROM resource_locks`).
		WithArgs("order:42", "EDIT").
		WillReturnRows(sqlmock.NewRows(lockColumns))

	lock, err := store.Get(context.Background(), "order:42", LockTypeEdit)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lock != nil {
		t.Fatalf("expected nil for absent row, got %+v", lock)
	}
}

func TestPostgresStore_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	acquired := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := acquired.Add(300 * time.Second)

	mock.ExpectExec(`INSERT INTO resource_locks .+ ON CONFLICT \(resource_id, lock_type\) DO UPDATE`).
		WithArgs("order:42", "EDIT", "alice", acquired, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), &Lock{
		ResourceID: "order:42",
		Type:       LockTypeEdit,
		LockedBy:   "alice",
		AcquiredAt: acquired,
		ExpiresAt:  expires,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM resource_locks WHERE resource_id = \$1 AND lock_type = \$2`).
		WithArgs("order:42", "EDIT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "order:42", LockTypeEdit); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestPostgresStore_DeleteForResource(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM resource_locks WHERE resource_id = \$1`).
		WithArgs("order:42").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.DeleteForResource(context.Background(), "order:42")
	if err != nil {
		t.Fatalf("DeleteForResource: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM resource_locks WHERE expires_at <= NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 5))

	removed, err := store.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if removed != 5 {
		t.Fatalf("removed = %d, want 5", removed)
	}
}
