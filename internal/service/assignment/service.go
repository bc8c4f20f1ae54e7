package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/config"
	"github.com/bakehouse-app/bakehouse/internal/entity"
	"github.com/bakehouse-app/bakehouse/internal/messaging"
	orderrepo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	teamrepo "github.com/bakehouse-app/bakehouse/internal/repository/team"
	userrepo "github.com/bakehouse-app/bakehouse/internal/repository/user"
	chatsvc "github.com/bakehouse-app/bakehouse/internal/service/chat"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/service/assignment")

// Orders is the order persistence contract for assignment mutations.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	UpdateAssignment(ctx context.Context, order *entity.Order) error
}

// Users is the account lookup contract.
type Users interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// Teams resolves active team memberships.
type Teams interface {
	ActiveMembership(ctx context.Context, juniorBakerID int64) (*entity.TeamMembership, error)
}

// Reconciler keeps chat participants in step with baker links.
type Reconciler interface {
	Reconcile(ctx context.Context, orderID int64) error
}

// Result reports a completed assignment.
type Result struct {
	Order        *entity.Order
	SelfAssigned bool
}

// Service routes orders to junior bakers or marks them as personally
// handled by the main baker. Both operations require the acting user
// to be the order's main baker and are idempotent under retry with
// identical parameters; only the customer notification is re-emitted.
type Service struct {
	orders     Orders
	users      Users
	teams      Teams
	reconciler Reconciler
	logger     *zap.Logger
	publisher  messaging.Client
	messaging  messagingConfig
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders     *orderrepo.Repository
	Users      *userrepo.Repository
	Teams      *teamrepo.Repository
	Reconciler *chatsvc.Service
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new assignment Service.
func NewService(p Params) *Service {
	return &Service{
		orders:     p.Orders,
		users:      p.Users,
		teams:      p.Teams,
		reconciler: p.Reconciler,
		logger:     p.Logger,
		publisher:  p.Publisher,
		messaging:  messagingConfig{enabled: p.Config.Messaging.Enabled},
	}
}

// AssignToJunior hands an order to a junior baker on the acting main
// baker's team. The order returns to pending (work has not started for
// the junior yet) and the optional deadline is recorded. Chat
// participants are reconciled before returning.
func (s *Service) AssignToJunior(ctx context.Context, orderID, juniorBakerID, actingMainBakerID int64, deadline *time.Time) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "AssignmentService.AssignToJunior", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("junior_baker.id", juniorBakerID),
	))
	defer span.End()

	order, err := s.loadOwnedOrder(ctx, orderID, actingMainBakerID)
	if err != nil {
		return nil, err
	}

	junior, err := s.users.GetByID(ctx, juniorBakerID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("junior baker not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load junior baker", errorbank.WithCause(err))
	}
	if junior.Role != entity.RoleJuniorBaker {
		return nil, errorbank.NotFound("junior baker not found")
	}

	membership, err := s.teams.ActiveMembership(ctx, juniorBakerID)
	if err != nil {
		if errors.Is(err, teamrepo.ErrNotFound) {
			return nil, errorbank.Forbidden("junior baker is not on your team")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve team membership", errorbank.WithCause(err))
	}
	if membership.MainBakerID != actingMainBakerID {
		return nil, errorbank.Forbidden("junior baker is not on your team")
	}

	order.JuniorBakerID = &juniorBakerID
	order.Status = entity.StatusPending
	if deadline != nil {
		order.Deadline = deadline
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.orders.UpdateAssignment(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment write failed")
		return nil, errorbank.Internal("failed to assign order", errorbank.WithCause(err))
	}

	s.reconcileParticipants(ctx, orderID)
	s.publishAssigned(ctx, order, false)

	s.logger.Info("order assigned to junior baker",
		zap.Int64("order_id", orderID),
		zap.Int64("junior_baker_id", juniorBakerID),
		zap.Int64("main_baker_id", actingMainBakerID),
	)
	return &Result{Order: order}, nil
}

// TakeSelf marks an order as personally handled by its main baker. Any
// junior assignment is cleared and the order moves to processing.
func (s *Service) TakeSelf(ctx context.Context, orderID, actingMainBakerID int64, deadline *time.Time) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "AssignmentService.TakeSelf", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("main_baker.id", actingMainBakerID),
	))
	defer span.End()

	order, err := s.loadOwnedOrder(ctx, orderID, actingMainBakerID)
	if err != nil {
		return nil, err
	}

	order.JuniorBakerID = nil
	order.Status = entity.StatusProcessing
	if deadline != nil {
		order.Deadline = deadline
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.orders.UpdateAssignment(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment write failed")
		return nil, errorbank.Internal("failed to take order", errorbank.WithCause(err))
	}

	s.reconcileParticipants(ctx, orderID)
	s.publishAssigned(ctx, order, true)

	s.logger.Info("order taken by main baker",
		zap.Int64("order_id", orderID),
		zap.Int64("main_baker_id", actingMainBakerID),
	)
	return &Result{Order: order, SelfAssigned: true}, nil
}

func (s *Service) loadOwnedOrder(ctx context.Context, orderID, actingMainBakerID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.MainBakerID == nil || *order.MainBakerID != actingMainBakerID {
		return nil, errorbank.Forbidden("only the order's main baker can assign it")
	}
	if order.Status.Terminal() {
		return nil, errorbank.Unprocessable("order is already closed",
			errorbank.WithDetail("status", string(order.Status)))
	}
	return order, nil
}

// Reconciliation failures never unwind the assignment; the participant
// set is re-derivable from the order row, so the recovery action is to
// run Reconcile again, not to repeat the order mutation.
func (s *Service) reconcileParticipants(ctx context.Context, orderID int64) {
	if err := s.reconciler.Reconcile(ctx, orderID); err != nil {
		s.logger.Warn("chat participant reconcile failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}
}

// OrderAssignedEvent is emitted after an assignment mutation. The
// worker turns it into a customer-facing system chat message; delivery
// is at-least-once and duplicates are tolerated.
type OrderAssignedEvent struct {
	Type          string     `json:"type"`
	OrderID       int64      `json:"order_id"`
	OrderCode     string     `json:"order_code"`
	CustomerID    int64      `json:"customer_id"`
	MainBakerID   int64      `json:"main_baker_id"`
	JuniorBakerID *int64     `json:"junior_baker_id,omitempty"`
	SelfAssigned  bool       `json:"self_assigned"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// EventOrderAssigned discriminates assignment events on the bus.
const EventOrderAssigned = "order.assigned"

func (s *Service) publishAssigned(ctx context.Context, order *entity.Order, selfAssigned bool) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderAssignedEvent{
		Type:          EventOrderAssigned,
		OrderID:       order.ID,
		OrderCode:     order.Code,
		CustomerID:    order.CustomerID,
		MainBakerID:   *order.MainBakerID,
		JuniorBakerID: order.JuniorBakerID,
		SelfAssigned:  selfAssigned,
		Deadline:      order.Deadline,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order assigned", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order assigned", zap.Error(err))
	}
}
