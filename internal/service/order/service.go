package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/cache"
	"github.com/bakehouse-app/bakehouse/internal/config"
	"github.com/bakehouse-app/bakehouse/internal/entity"
	"github.com/bakehouse-app/bakehouse/internal/messaging"
	repo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	"github.com/bakehouse-app/bakehouse/internal/service/payout"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/service/order")

// Repository is the order persistence contract used by the service.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByCode(ctx context.Context, code string) (*entity.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]entity.Order, error)
	ListByBaker(ctx context.Context, bakerID int64) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus, at time.Time) error
}

// Distributor triggers the one-time revenue split after delivery.
type Distributor interface {
	Distribute(ctx context.Context, orderID int64) (payout.Outcome, error)
}

// transitions is the directed status graph. cancelled is reachable
// from every non-terminal state; delivered and cancelled are terminal.
var transitions = map[entity.OrderStatus][]entity.OrderStatus{
	entity.StatusPending:      {entity.StatusProcessing, entity.StatusCancelled},
	entity.StatusProcessing:   {entity.StatusQualityCheck, entity.StatusCancelled},
	entity.StatusQualityCheck: {entity.StatusReady, entity.StatusCancelled},
	entity.StatusReady:        {entity.StatusDelivered, entity.StatusCancelled},
}

func canTransition(from, to entity.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service owns order creation, reads, and the status state machine.
type Service struct {
	repo        Repository
	distributor Distributor
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository  *repo.Repository
	Distributor *payout.Service
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
}

// NewService wires a new order Service.
func NewService(p Params) *Service {
	return &Service{
		repo:        p.Repository,
		distributor: p.Distributor,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		logger:      p.Logger,
		publisher:   p.Publisher,
		messaging:   messagingConfig{enabled: p.Config.Messaging.Enabled},
	}
}

// Create registers a new order for a customer, optionally already
// routed to a main baker's storefront.
func (s *Service) Create(ctx context.Context, customerID int64, mainBakerID *int64, totalAmount float64, deadline *time.Time) (*entity.Order, error) {
	if totalAmount < 0 {
		return nil, errorbank.BadRequest("total amount must not be negative")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	now := time.Now().UTC()
	order := &entity.Order{
		Code:        newOrderCode(),
		CustomerID:  customerID,
		MainBakerID: mainBakerID,
		Status:      entity.StatusPending,
		TotalAmount: totalAmount,
		Deadline:    deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.publishStatusEvent(ctx, order, EventOrderCreated)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// GetByCode retrieves an order by its external order code.
func (s *Service) GetByCode(ctx context.Context, code string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.GetByCode", trace.WithAttributes(attribute.String("order.code", code)))
	defer span.End()

	order, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// ListByCustomer returns a customer's orders.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]entity.Order, error) {
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListByBaker returns orders linked to a baker as main or junior.
func (s *Service) ListByBaker(ctx context.Context, bakerID int64) ([]entity.Order, error) {
	orders, err := s.repo.ListByBaker(ctx, bakerID)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Transition moves an order along the status graph. The write is a
// compare-and-swap on the prior status, so two racing transitions
// cannot both win; the loser sees a conflict and should re-read.
// Transition itself triggers no business side effects.
func (s *Service) Transition(ctx context.Context, orderID int64, newStatus entity.OrderStatus) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(newStatus)),
	))
	defer span.End()

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if !canTransition(order.Status, newStatus) {
		return nil, errorbank.Unprocessable("invalid status transition",
			errorbank.WithDetail("from", string(order.Status)),
			errorbank.WithDetail("to", string(newStatus)),
		)
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, orderID, order.Status, newStatus, now); err != nil {
		if errors.Is(err, repo.ErrStaleState) {
			return nil, errorbank.Conflict("order status changed concurrently")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "status write failed")
		return nil, errorbank.Internal("failed to update status", errorbank.WithCause(err))
	}

	order.Status = newStatus
	order.UpdatedAt = now
	s.invalidateCache(ctx, orderID)
	s.publishStatusEvent(ctx, order, EventOrderStatusChanged)
	return order, nil
}

// MarkDelivered is the customer-facing delivery confirmation. The
// status transition alone decides the caller-visible result; payment
// distribution runs afterwards as a best-effort side effect and stays
// independently retriable through the admin payout action when it
// fails.
func (s *Service) MarkDelivered(ctx context.Context, orderID, actingCustomerID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MarkDelivered", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.CustomerID != actingCustomerID {
		return nil, errorbank.Forbidden("only the order's customer can confirm delivery")
	}

	order, err = s.Transition(ctx, orderID, entity.StatusDelivered)
	if err != nil {
		return nil, err
	}

	if s.distributor != nil {
		if _, err := s.distributor.Distribute(ctx, orderID); err != nil {
			s.logger.Error("payment distribution failed after delivery; retry via admin payout",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
		}
	}
	return order, nil
}

// Cancel aborts a non-terminal order on behalf of its customer.
func (s *Service) Cancel(ctx context.Context, orderID, actingCustomerID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.CustomerID != actingCustomerID {
		return nil, errorbank.Forbidden("only the order's customer can cancel it")
	}

	return s.Transition(ctx, orderID, entity.StatusCancelled)
}

func newOrderCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "BH-" + raw[:10]
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), raw, s.cacheTTL)
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

// Event type discriminators for order lifecycle events.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderStatusEvent is emitted on creation and on every status change.
type OrderStatusEvent struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	OrderCode  string    `json:"order_code"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publishStatusEvent(ctx context.Context, order *entity.Order, eventType string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderStatusEvent{
		Type:       eventType,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		OccurredAt: order.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.Error(err))
	}
}
