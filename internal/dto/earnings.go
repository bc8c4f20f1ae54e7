package dto

import "time"

// EarningLineResponse is one earnings record for a baker.
type EarningLineResponse struct {
	OrderID    int64     `json:"order_id"`
	BakerRole  string    `json:"baker_role"`
	Amount     float64   `json:"amount"`
	Percentage float64   `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
}

// EarningsResponse is a baker's total plus per-order breakdown.
type EarningsResponse struct {
	BakerID int64                 `json:"baker_id"`
	Total   float64               `json:"total"`
	Lines   []EarningLineResponse `json:"lines"`
}

// BakerSummaryResponse is one row of the admin all-bakers summary.
type BakerSummaryResponse struct {
	BakerID int64   `json:"baker_id"`
	Orders  int64   `json:"orders"`
	Total   float64 `json:"total"`
}

// DistributionResponse reports the result of a payout attempt.
type DistributionResponse struct {
	OrderID       int64                     `json:"order_id"`
	Status        string                    `json:"status"`
	Total         float64                   `json:"total,omitempty"`
	Legs          []DistributionLegResponse `json:"legs,omitempty"`
	DistributedAt *time.Time                `json:"distributed_at,omitempty"`
}

// DistributionLegResponse is one leg of a revenue split.
type DistributionLegResponse struct {
	BakerID    int64   `json:"baker_id"`
	BakerRole  string  `json:"baker_role"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}
