package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cargodesk/cargodesk/pkg/repository"
)

// Repository is the persistence surface the user controller programs
// against.
type Repository interface {
	repository.Repository[User, int64]
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	*repository.SQLRepository[User, int64]
	executor repository.SQLExecutor
}

// NewPostgresRepository creates a user repository over the given executor.
func NewPostgresRepository(executor repository.SQLExecutor) *PostgresRepository {
	return &PostgresRepository{
		SQLRepository: repository.NewSQLRepository[User, int64](executor, "users", "id", &Mapper{}),
		executor:      executor,
	}
}

// FindByUsername returns the user with the given username, or sql.ErrNoRows.
// Usernames are unique; used for duplicate checks on create.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	matches, err := r.FindAll(ctx, repository.QueryOptions{
		Filter: repository.Filter{"username": username},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	if len(matches) == 0 {
		return nil, sql.ErrNoRows
	}
	return &matches[0], nil
}
