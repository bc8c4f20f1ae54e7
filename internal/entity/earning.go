package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// BakerRole is the role a baker held at payout time.
type BakerRole string

const (
	EarningJuniorBaker BakerRole = "junior_baker"
	EarningMainBaker   BakerRole = "main_baker"
)

// BakerEarning is one leg of an order's revenue split. The storage
// layer enforces uniqueness on (order_id, baker_id); that constraint
// is the idempotency guard for payment distribution.
type BakerEarning struct {
	bun.BaseModel `bun:"table:baker_earnings"`

	ID         int64     `bun:",pk,autoincrement"`
	OrderID    int64     `bun:"order_id"`
	BakerID    int64     `bun:"baker_id"`
	BakerRole  BakerRole `bun:"baker_role"`
	Amount     float64   `bun:"amount"`
	Percentage float64   `bun:"percentage"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
