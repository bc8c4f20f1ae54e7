package earnings

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/dto"
	"github.com/bakehouse-app/bakehouse/internal/presentation/http/response"
	payoutsvc "github.com/bakehouse-app/bakehouse/internal/service/payout"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/transport/http/earnings")

// Handler exposes earnings and payout endpoints over HTTP.
type Handler struct {
	svc *payoutsvc.Service
}

// NewHandler constructs an earnings Handler.
func NewHandler(svc *payoutsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/bakers/:id/earnings", h.bakerEarnings)
	e.GET("/admin/earnings", h.summary)
	e.POST("/admin/orders/:id/payout", h.distribute)
}

func (h *Handler) bakerEarnings(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(errorbank.BadRequest("invalid id")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "earnings.baker", trace.WithAttributes(attribute.Int64("baker.id", id)))
	defer span.End()

	total, err := h.svc.TotalEarnings(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	rows, err := h.svc.EarningsBreakdown(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := dto.EarningsResponse{BakerID: id, Total: total, Lines: make([]dto.EarningLineResponse, 0, len(rows))}
	for _, row := range rows {
		out.Lines = append(out.Lines, dto.EarningLineResponse{
			OrderID:    row.OrderID,
			BakerRole:  string(row.BakerRole),
			Amount:     row.Amount,
			Percentage: row.Percentage,
			CreatedAt:  row.CreatedAt,
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "earnings.summary")
	defer span.End()

	rows, err := h.svc.AllBakersSummary(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.BakerSummaryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.BakerSummaryResponse{BakerID: row.BakerID, Orders: row.Orders, Total: row.Total})
	}
	return b.WithData(out).Build()
}

// distribute is the admin retry path for payouts that failed during
// the delivery flow. Re-running it is always safe; an order that has
// already been paid out reports already_distributed.
func (h *Handler) distribute(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(errorbank.BadRequest("invalid id")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "earnings.distribute", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	outcome, err := h.svc.Distribute(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := dto.DistributionResponse{
		OrderID: outcome.OrderID,
		Status:  string(outcome.Status),
		Total:   outcome.Total,
	}
	if outcome.Status == payoutsvc.StatusDistributed {
		at := outcome.DistributedAt
		out.DistributedAt = &at
		for _, leg := range outcome.Legs {
			out.Legs = append(out.Legs, dto.DistributionLegResponse{
				BakerID:    leg.BakerID,
				BakerRole:  string(leg.Role),
				Amount:     leg.Amount,
				Percentage: leg.Percentage,
			})
		}
	}
	return b.WithData(out).Build()
}
