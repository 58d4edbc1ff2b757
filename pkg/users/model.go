// Package users implements admin-managed user accounts. User records are
// not lock-guarded; the authenticated user id from these records is the
// holder identity used by the lock protocol.
package users

import (
	"database/sql"
	"fmt"
	"time"
)

// Role is the access level of a user.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleDispatcher Role = "DISPATCHER"
	RoleDriver     Role = "DRIVER"
)

// ParseRole validates a role value received at the boundary.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleDispatcher, RoleDriver:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("invalid role %q", raw)
	}
}

// User is one user account row. The password hash is opaque to this service
// and never serialized in responses.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Mapper maps User entities to and from the users table.
type Mapper struct{}

func (m *Mapper) Columns() []string {
	return []string{
		"id",
		"username",
		"display_name",
		"role",
		"password_hash",
		"created_at",
		"updated_at",
	}
}

func (m *Mapper) ToRow(entity *User) ([]string, []interface{}, error) {
	if entity.Username == "" {
		return nil, nil, fmt.Errorf("username is required")
	}
	return []string{
			"username",
			"display_name",
			"role",
			"password_hash",
			"created_at",
			"updated_at",
		}, []interface{}{
			entity.Username,
			entity.DisplayName,
			string(entity.Role),
			entity.PasswordHash,
			entity.CreatedAt,
			entity.UpdatedAt,
		}, nil
}

func (m *Mapper) FromRow(rows *sql.Rows) (*User, error) {
	entity := &User{}
	var role string
	if err := rows.Scan(
		&entity.ID,
		&entity.Username,
		&entity.DisplayName,
		&role,
		&entity.PasswordHash,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entity.Role = Role(role)
	return entity, nil
}

func (m *Mapper) GetID(entity *User) int64 {
	return entity.ID
}

func (m *Mapper) SetID(entity *User, id int64) {
	entity.ID = id
}
