package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus enumerates the order fulfillment lifecycle.
type OrderStatus string

const (
	StatusPending      OrderStatus = "pending"
	StatusProcessing   OrderStatus = "processing"
	StatusQualityCheck OrderStatus = "quality_check"
	StatusReady        OrderStatus = "ready"
	StatusDelivered    OrderStatus = "delivered"
	StatusCancelled    OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is a customer purchase routed through the baker hierarchy.
// JuniorBakerID may only be set while MainBakerID is set; the junior
// baker must be on the main baker's active team at assignment time.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64       `bun:",pk,autoincrement"`
	Code          string      `bun:"code"`
	CustomerID    int64       `bun:"customer_id"`
	MainBakerID   *int64      `bun:"main_baker_id"`
	JuniorBakerID *int64      `bun:"junior_baker_id"`
	Status        OrderStatus `bun:"status"`
	TotalAmount   float64     `bun:"total_amount"`
	Deadline      *time.Time  `bun:"deadline,nullzero"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero"`
}
