package dto

import (
	"time"

	"github.com/bakehouse-app/bakehouse/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	CustomerID    int64      `json:"customer_id"`
	MainBakerID   *int64     `json:"main_baker_id,omitempty"`
	JuniorBakerID *int64     `json:"junior_baker_id,omitempty"`
	Status        string     `json:"status"`
	TotalAmount   float64    `json:"total_amount"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FromOrder maps an order entity to its response shape.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:            order.ID,
		Code:          order.Code,
		CustomerID:    order.CustomerID,
		MainBakerID:   order.MainBakerID,
		JuniorBakerID: order.JuniorBakerID,
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount,
		Deadline:      order.Deadline,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

// ParticipantResponse is a chat participant row.
type ParticipantResponse struct {
	UserID   int64     `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
