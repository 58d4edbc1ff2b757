package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SQLExecutor defines the interface for executing SQL queries.
// This can be a *sql.DB, *sql.Tx, or an adapter that routes through an
// ambient transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// EntityMapper defines how to map between entities and database rows.
// Mappers are hand written per entity; column order in Columns must match
// what FromRow scans.
type EntityMapper[T any, ID comparable] interface {
	// Columns lists every column of the table, ID column first.
	// Used to build SELECT lists and to validate filter and sort fields.
	Columns() []string

	// ToRow converts an entity to column names and values for INSERT/UPDATE.
	// The ID column is excluded; it is generated by the database.
	ToRow(entity *T) (columns []string, values []interface{}, err error)

	// FromRow scans a database row into an entity
	FromRow(rows *sql.Rows) (*T, error)

	// GetID extracts the ID from an entity
	GetID(entity *T) ID

	// SetID sets the ID on an entity
	SetID(entity *T, id ID)
}

// SQLRepository provides a generic implementation of CRUD operations for
// PostgreSQL tables
type SQLRepository[T any, ID comparable] struct {
	executor  SQLExecutor
	tableName string
	idColumn  string
	mapper    EntityMapper[T, ID]
	columns   map[string]struct{}
}

// NewSQLRepository creates a new generic SQL repository
func NewSQLRepository[T any, ID comparable](
	executor SQLExecutor,
	tableName string,
	idColumn string,
	mapper EntityMapper[T, ID],
) *SQLRepository[T, ID] {
	known := make(map[string]struct{}, len(mapper.Columns()))
	for _, col := range mapper.Columns() {
		known[col] = struct{}{}
	}
	return &SQLRepository[T, ID]{
		executor:  executor,
		tableName: tableName,
		idColumn:  idColumn,
		mapper:    mapper,
		columns:   known,
	}
}

// Create inserts a new entity and populates its database-generated ID
func (r *SQLRepository[T, ID]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}

	columns, values, err := r.mapper.ToRow(entity)
	if err != nil {
		return fmt.Errorf("failed to map entity to row: %w", err)
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.tableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		r.idColumn,
	)

	var id ID
	if err := r.executor.QueryRowContext(ctx, query, values...).Scan(&id); err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	r.mapper.SetID(entity, id)

	return nil
}

// FindByID retrieves an entity by its ID. Returns sql.ErrNoRows when the
// entity does not exist.
func (r *SQLRepository[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		strings.Join(r.mapper.Columns(), ", "),
		r.tableName,
		r.idColumn,
	)

	rows, err := r.executor.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query entity: %w", err)
		}
		return nil, sql.ErrNoRows
	}

	entity, err := r.mapper.FromRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	return entity, nil
}

// FindAll retrieves entities matching the query options with support for
// filtering, sorting, and pagination. Filters are combined with AND logic.
// Returns an empty slice if no entities match.
func (r *SQLRepository[T, ID]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s",
		strings.Join(r.mapper.Columns(), ", "),
		r.tableName,
	)
	args := []interface{}{}
	argIndex := 1

	whereClause, whereArgs, err := r.buildWhere(opts.Filter, &argIndex)
	if err != nil {
		return nil, err
	}
	query += whereClause
	args = append(args, whereArgs...)

	if opts.Sort.Field != "" {
		if _, ok := r.columns[opts.Sort.Field]; !ok {
			return nil, fmt.Errorf("unknown sort field %q", opts.Sort.Field)
		}
		order := "ASC"
		if opts.Sort.Order == SortDesc {
			order = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", opts.Sort.Field, order)
	}

	if opts.Pagination.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, opts.Pagination.Limit(), opts.Pagination.Offset())
	}

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := []T{}
	for rows.Next() {
		entity, err := r.mapper.FromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entities, nil
}

// Count returns the number of entities matching the filter
func (r *SQLRepository[T, ID]) Count(ctx context.Context, filter Filter) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.tableName)
	argIndex := 1

	whereClause, args, err := r.buildWhere(filter, &argIndex)
	if err != nil {
		return 0, err
	}
	query += whereClause

	var count int64
	if err := r.executor.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}

	return count, nil
}

// Update updates an existing entity. Returns sql.ErrNoRows if the entity
// does not exist.
func (r *SQLRepository[T, ID]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}

	id := r.mapper.GetID(entity)
	columns, values, err := r.mapper.ToRow(entity)
	if err != nil {
		return fmt.Errorf("failed to map entity to row: %w", err)
	}

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		r.tableName,
		strings.Join(setClauses, ", "),
		r.idColumn,
		len(values)+1,
	)

	values = append(values, id)

	result, err := r.executor.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete removes an entity from the database by its ID. Returns
// sql.ErrNoRows if the entity does not exist.
func (r *SQLRepository[T, ID]) Delete(ctx context.Context, id ID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.tableName, r.idColumn)

	result, err := r.executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// buildWhere renders a WHERE clause from the filter, validating that every
// filter field is a known column. Filter values come from request input, so
// field names must never reach the query text unchecked.
func (r *SQLRepository[T, ID]) buildWhere(filter Filter, argIndex *int) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		if _, ok := r.columns[field]; !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", field)
		}
		fields = append(fields, field)
	}
	// Deterministic clause order keeps queries stable for logging and tests
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", field, *argIndex))
		args = append(args, filter[field])
		*argIndex++
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
