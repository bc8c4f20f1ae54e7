package order

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/dto"
	"github.com/bakehouse-app/bakehouse/internal/entity"
	"github.com/bakehouse-app/bakehouse/internal/presentation/http/response"
	assignmentsvc "github.com/bakehouse-app/bakehouse/internal/service/assignment"
	chatsvc "github.com/bakehouse-app/bakehouse/internal/service/chat"
	ordersvc "github.com/bakehouse-app/bakehouse/internal/service/order"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/transport/http/order")

// Handler exposes order and assignment endpoints over HTTP.
type Handler struct {
	orders      *ordersvc.Service
	assignments *assignmentsvc.Service
	chat        *chatsvc.Service
}

// NewHandler constructs an order Handler.
func NewHandler(orders *ordersvc.Service, assignments *assignmentsvc.Service, chat *chatsvc.Service) *Handler {
	return &Handler{orders: orders, assignments: assignments, chat: chat}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.POST("/:id/assign", h.assign)
	g.POST("/:id/take-self", h.takeSelf)
	g.POST("/:id/delivered", h.markDelivered)
	g.POST("/:id/cancel", h.cancel)
	g.GET("/:id/participants", h.participants)

	e.GET("/customers/:id/orders", h.listByCustomer)
	e.GET("/bakers/:id/orders", h.listByBaker)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		CustomerID  int64      `json:"customer_id"`
		MainBakerID *int64     `json:"main_baker_id"`
		TotalAmount float64    `json:"total_amount"`
		Deadline    *time.Time `json:"deadline"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.CustomerID == 0 {
		return b.WithError(errorbank.BadRequest("customer_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("customer.id", payload.CustomerID),
	))
	defer span.End()

	order, err := h.orders.Create(ctx, payload.CustomerID, payload.MainBakerID, payload.TotalAmount, payload.Deadline)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) assign(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		JuniorBakerID int64      `json:"junior_baker_id"`
		MainBakerID   int64      `json:"main_baker_id"`
		Deadline      *time.Time `json:"deadline"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.JuniorBakerID == 0 || payload.MainBakerID == 0 {
		return b.WithError(errorbank.BadRequest("junior_baker_id and main_baker_id are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.assign", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Int64("junior_baker.id", payload.JuniorBakerID),
	))
	defer span.End()

	result, err := h.assignments.AssignToJunior(ctx, id, payload.JuniorBakerID, payload.MainBakerID, payload.Deadline)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(result.Order)).Build()
}

func (h *Handler) takeSelf(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		MainBakerID int64      `json:"main_baker_id"`
		Deadline    *time.Time `json:"deadline"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.MainBakerID == 0 {
		return b.WithError(errorbank.BadRequest("main_baker_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.takeSelf", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	result, err := h.assignments.TakeSelf(ctx, id, payload.MainBakerID, payload.Deadline)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(result.Order)).Build()
}

func (h *Handler) markDelivered(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		CustomerID int64 `json:"customer_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.CustomerID == 0 {
		return b.WithError(errorbank.BadRequest("customer_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.markDelivered", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.MarkDelivered(ctx, id, payload.CustomerID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		CustomerID int64 `json:"customer_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.Cancel(ctx, id, payload.CustomerID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) participants(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.participants", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	rows, err := h.chat.ListParticipants(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.ParticipantResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, dto.ParticipantResponse{UserID: p.UserID, Role: string(p.Role), JoinedAt: p.JoinedAt})
	}
	return b.WithData(out).Build()
}

func (h *Handler) listByCustomer(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listByCustomer", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	orders, err := h.orders.ListByCustomer(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).Build()
}

func (h *Handler) listByBaker(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listByBaker", trace.WithAttributes(attribute.Int64("baker.id", id)))
	defer span.End()

	orders, err := h.orders.ListByBaker(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).Build()
}

func toDTOs(orders []entity.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, dto.FromOrder(&orders[i]))
	}
	return out
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id")
	}
	return id, nil
}
