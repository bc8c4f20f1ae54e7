package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ParticipantRole labels a chat participant's relation to the order.
type ParticipantRole string

const (
	ParticipantCustomer    ParticipantRole = "customer"
	ParticipantJuniorBaker ParticipantRole = "junior_baker"
	ParticipantMainBaker   ParticipantRole = "main_baker"
)

// ChatParticipant grants a user access to an order's chat. Rows are
// historical: a reassigned-away junior baker keeps their row. Inserts
// are insert-or-ignore on (order_id, user_id).
type ChatParticipant struct {
	bun.BaseModel `bun:"table:chat_participants"`

	ID       int64           `bun:",pk,autoincrement"`
	OrderID  int64           `bun:"order_id"`
	UserID   int64           `bun:"user_id"`
	Role     ParticipantRole `bun:"role"`
	JoinedAt time.Time       `bun:"joined_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// ChatMessage is one entry of the append-only per-order message log.
// SenderID is nil for system messages.
type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages"`

	ID        int64     `bun:",pk,autoincrement"`
	OrderID   int64     `bun:"order_id"`
	SenderID  *int64    `bun:"sender_id"`
	Body      string    `bun:"body"`
	IsSystem  bool      `bun:"is_system"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
