package dto

import (
	"time"

	"github.com/bakehouse-app/bakehouse/internal/entity"
)

// TeamMemberResponse is one junior baker on a main baker's team.
type TeamMemberResponse struct {
	UserID     int64     `json:"user_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ApplicationResponse represents a baker application.
type ApplicationResponse struct {
	ID          int64      `json:"id"`
	ApplicantID int64      `json:"applicant_id"`
	MainBakerID *int64     `json:"main_baker_id,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

// FromApplication maps an application entity to its response shape.
func FromApplication(app *entity.BakerApplication) ApplicationResponse {
	return ApplicationResponse{
		ID:          app.ID,
		ApplicantID: app.ApplicantID,
		MainBakerID: app.MainBakerID,
		Type:        string(app.Type),
		Status:      string(app.Status),
		CreatedAt:   app.CreatedAt,
		ReviewedAt:  app.ReviewedAt,
	}
}
