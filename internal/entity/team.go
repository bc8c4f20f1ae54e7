package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// TeamMembership is the directed main-baker/junior-baker relation.
// At most one row per junior baker may be active at a time; rows are
// deactivated on reassignment or promotion, never deleted.
type TeamMembership struct {
	bun.BaseModel `bun:"table:baker_team"`

	ID            int64      `bun:",pk,autoincrement"`
	MainBakerID   int64      `bun:"main_baker_id"`
	JuniorBakerID int64      `bun:"junior_baker_id"`
	IsActive      bool       `bun:"is_active"`
	AssignedAt    time.Time  `bun:"assigned_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	DeactivatedAt *time.Time `bun:"deactivated_at,nullzero"`
}

// ApplicationType enumerates baker application kinds.
type ApplicationType string

const (
	ApplicationJoinTeam  ApplicationType = "join_team"
	ApplicationPromotion ApplicationType = "promotion"
)

// ApplicationStatus enumerates review states of a baker application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// BakerApplication records a request to join a main baker's team or to
// be promoted to main baker. Join applications are reviewed by the
// target main baker, promotions by an admin.
type BakerApplication struct {
	bun.BaseModel `bun:"table:baker_applications"`

	ID          int64             `bun:",pk,autoincrement"`
	ApplicantID int64             `bun:"applicant_id"`
	MainBakerID *int64            `bun:"main_baker_id"`
	Type        ApplicationType   `bun:"type"`
	Status      ApplicationStatus `bun:"status"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	ReviewedAt  *time.Time        `bun:"reviewed_at,nullzero"`
}
