package handovers

import (
	"context"
	"fmt"

	"github.com/cargodesk/cargodesk/pkg/repository"
)

// Repository is the persistence surface the handover controller programs
// against.
type Repository interface {
	repository.Repository[Note, int64]
	Exists(ctx context.Context, id int64) (bool, error)
}

// PostgresRepository stores notes in the handover_notes table.
type PostgresRepository struct {
	*repository.SQLRepository[Note, int64]
	executor repository.SQLExecutor
}

// NewPostgresRepository creates a handover note repository over the given
// executor.
func NewPostgresRepository(executor repository.SQLExecutor) *PostgresRepository {
	return &PostgresRepository{
		SQLRepository: repository.NewSQLRepository[Note, int64](executor, "handover_notes", "id", &Mapper{}),
		executor:      executor,
	}
}

// Exists reports whether a note row with the given id is present.
func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var found bool
	query := "SELECT EXISTS(SELECT 1 FROM handover_notes WHERE id = $1)"
	if err := r.executor.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check handover note existence: %w", err)
	}
	return found, nil
}
