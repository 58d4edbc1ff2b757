package orders

import (
	"context"
	"fmt"

	"github.com/cargodesk/cargodesk/pkg/repository"
)

// Repository is the persistence surface the order controller programs
// against. PostgresRepository is the production implementation; tests use an
// in-memory fake.
type Repository interface {
	repository.Repository[Order, int64]
	Exists(ctx context.Context, id int64) (bool, error)
}

// PostgresRepository stores orders in the orders table.
type PostgresRepository struct {
	*repository.SQLRepository[Order, int64]
	executor repository.SQLExecutor
}

// NewPostgresRepository creates an order repository over the given executor.
// The executor routes through the ambient transaction when one is present.
func NewPostgresRepository(executor repository.SQLExecutor) *PostgresRepository {
	return &PostgresRepository{
		SQLRepository: repository.NewSQLRepository[Order, int64](executor, "orders", "id", &Mapper{}),
		executor:      executor,
	}
}

// Exists reports whether an order row with the given id is present.
func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var found bool
	query := "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)"
	if err := r.executor.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check order existence: %w", err)
	}
	return found, nil
}
