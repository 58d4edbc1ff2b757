package orders

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	now := time.Now().UTC()
	order := &Order{
		OrderNo:      "ORD-11",
		CustomerName: "Acme",
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.ID != 11 {
		t.Fatalf("ID = %d, want 11", order.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Exists(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM orders WHERE id = \$1\)`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.Exists(context.Background(), 11)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !found {
		t.Fatal("expected order to exist")
	}

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM orders WHERE id = \$1\)`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	found, err = repo.Exists(context.Background(), 404)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if found {
		t.Fatal("expected order to be absent")
	}
}

func TestPostgresRepository_FindByIDScansDriverNull(t *testing.T) {
	repo, mock := newRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_no", "customer_name", "origin_address", "destination_address",
			"status", "driver_id", "remark", "created_at", "updated_at",
		}).AddRow(int64(3), "ORD-3", "Acme", "Dock 4", "Warehouse 9", "PENDING", nil, "", now, now))

	order, err := repo.FindByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if order.DriverID != "" {
		t.Fatalf("DriverID = %q, want empty for NULL", order.DriverID)
	}
	if order.Status != StatusPending {
		t.Fatalf("Status = %s", order.Status)
	}
}
