package team

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/dto"
	"github.com/bakehouse-app/bakehouse/internal/entity"
	"github.com/bakehouse-app/bakehouse/internal/presentation/http/response"
	teamsvc "github.com/bakehouse-app/bakehouse/internal/service/team"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/transport/http/team")

// Handler exposes baker team and application endpoints over HTTP.
type Handler struct {
	svc *teamsvc.Service
}

// NewHandler constructs a team Handler.
func NewHandler(svc *teamsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/bakers/:id/team", h.listTeam)

	g := e.Group("/applications")
	g.POST("", h.apply)
	g.POST("/:id/review", h.review)
}

func (h *Handler) listTeam(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(errorbank.BadRequest("invalid id")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "team.list", trace.WithAttributes(attribute.Int64("main_baker.id", id)))
	defer span.End()

	members, err := h.svc.ListTeam(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.TeamMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, dto.TeamMemberResponse{
			UserID:     m.User.ID,
			FullName:   m.User.FullName,
			Email:      m.User.Email,
			AssignedAt: m.AssignedAt,
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) apply(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		ApplicantID int64  `json:"applicant_id"`
		Type        string `json:"type"`
		MainBakerID *int64 `json:"main_baker_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ApplicantID == 0 || payload.Type == "" {
		return b.WithError(errorbank.BadRequest("applicant_id and type are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.create", trace.WithAttributes(
		attribute.Int64("applicant.id", payload.ApplicantID),
		attribute.String("application.type", payload.Type),
	))
	defer span.End()

	app, err := h.svc.Apply(ctx, payload.ApplicantID, entity.ApplicationType(payload.Type), payload.MainBakerID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromApplication(app)).Build()
}

func (h *Handler) review(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(errorbank.BadRequest("invalid id")).Build()
	}

	var payload struct {
		ReviewerID int64 `json:"reviewer_id"`
		Approve    bool  `json:"approve"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ReviewerID == 0 {
		return b.WithError(errorbank.BadRequest("reviewer_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.review", trace.WithAttributes(
		attribute.Int64("application.id", id),
		attribute.Bool("approve", payload.Approve),
	))
	defer span.End()

	app, err := h.svc.Review(ctx, id, payload.ReviewerID, payload.Approve)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromApplication(app)).Build()
}
