// Package handovers implements shift handover notes attached to orders,
// with EDIT-locked updates so two dispatchers never overwrite each other's
// note text.
package handovers

import (
	"database/sql"
	"fmt"
	"time"
)

// Note is one handover note row. ShiftDate is the calendar day the note
// covers, stored date-only.
type Note struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	ShiftDate time.Time `json:"shift_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mapper maps Note entities to and from the handover_notes table.
type Mapper struct{}

func (m *Mapper) Columns() []string {
	return []string{
		"id",
		"order_id",
		"author_id",
		"content",
		"shift_date",
		"created_at",
		"updated_at",
	}
}

func (m *Mapper) ToRow(entity *Note) ([]string, []interface{}, error) {
	if entity.OrderID <= 0 {
		return nil, nil, fmt.Errorf("order_id is required")
	}
	if entity.AuthorID == "" {
		return nil, nil, fmt.Errorf("author_id is required")
	}
	return []string{
			"order_id",
			"author_id",
			"content",
			"shift_date",
			"created_at",
			"updated_at",
		}, []interface{}{
			entity.OrderID,
			entity.AuthorID,
			entity.Content,
			entity.ShiftDate,
			entity.CreatedAt,
			entity.UpdatedAt,
		}, nil
}

func (m *Mapper) FromRow(rows *sql.Rows) (*Note, error) {
	entity := &Note{}
	if err := rows.Scan(
		&entity.ID,
		&entity.OrderID,
		&entity.AuthorID,
		&entity.Content,
		&entity.ShiftDate,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return entity, nil
}

func (m *Mapper) GetID(entity *Note) int64 {
	return entity.ID
}

func (m *Mapper) SetID(entity *Note, id int64) {
	entity.ID = id
}
