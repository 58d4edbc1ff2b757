// Package orders implements shipment order management: CRUD, status
// transitions, driver assignment, and the lock endpoints that guard
// concurrent edits.
package orders

import (
	"database/sql"
	"fmt"
	"time"
)

// Status is the delivery state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus validates a status value received at the boundary.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("invalid order status %q", raw)
	}
}

// Order is one shipment order row. DriverID is empty while the order is
// unassigned.
type Order struct {
	ID                 int64     `json:"id"`
	OrderNo            string    `json:"order_no"`
	CustomerName       string    `json:"customer_name"`
	OriginAddress      string    `json:"origin_address"`
	DestinationAddress string    `json:"destination_address"`
	Status             Status    `json:"status"`
	DriverID           string    `json:"driver_id,omitempty"`
	Remark             string    `json:"remark,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Mapper maps Order entities to and from the orders table.
type Mapper struct{}

func (m *Mapper) Columns() []string {
	return []string{
		"id",
		"order_no",
		"customer_name",
		"origin_address",
		"destination_address",
		"status",
		"driver_id",
		"remark",
		"created_at",
		"updated_at",
	}
}

func (m *Mapper) ToRow(entity *Order) ([]string, []interface{}, error) {
	if entity.OrderNo == "" {
		return nil, nil, fmt.Errorf("order_no is required")
	}
	driverID := sql.NullString{String: entity.DriverID, Valid: entity.DriverID != ""}
	return []string{
			"order_no",
			"customer_name",
			"origin_address",
			"destination_address",
			"status",
			"driver_id",
			"remark",
			"created_at",
			"updated_at",
		}, []interface{}{
			entity.OrderNo,
			entity.CustomerName,
			entity.OriginAddress,
			entity.DestinationAddress,
			string(entity.Status),
			driverID,
			entity.Remark,
			entity.CreatedAt,
			entity.UpdatedAt,
		}, nil
}

func (m *Mapper) FromRow(rows *sql.Rows) (*Order, error) {
	entity := &Order{}
	var status string
	var driverID sql.NullString
	if err := rows.Scan(
		&entity.ID,
		&entity.OrderNo,
		&entity.CustomerName,
		&entity.OriginAddress,
		&entity.DestinationAddress,
		&status,
		&driverID,
		&entity.Remark,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entity.Status = Status(status)
	entity.DriverID = driverID.String
	return entity, nil
}

func (m *Mapper) GetID(entity *Order) int64 {
	return entity.ID
}

func (m *Mapper) SetID(entity *Order, id int64) {
	entity.ID = id
}
