package chat

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/entity"
	chatrepo "github.com/bakehouse-app/bakehouse/internal/repository/chat"
	orderrepo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/service/chat")

// Orders is the order lookup contract used by the synchronizer.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Participants is the chat persistence contract.
type Participants interface {
	AddParticipant(ctx context.Context, participant *entity.ChatParticipant) error
	ListParticipants(ctx context.Context, orderID int64) ([]entity.ChatParticipant, error)
	AppendMessage(ctx context.Context, message *entity.ChatMessage) error
}

// Service keeps an order's chat participant set in step with its
// customer and baker links. Rows are only ever added: a reassigned
// junior baker stays as a historical participant.
type Service struct {
	orders       Orders
	participants Participants
	logger       *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders       *orderrepo.Repository
	Participants *chatrepo.Repository
	Logger       *zap.Logger
}

// NewService wires a new chat Service.
func NewService(p Params) *Service {
	return &Service{
		orders:       p.Orders,
		participants: p.Participants,
		logger:       p.Logger,
	}
}

// Reconcile recomputes the participant set for an order from its
// current links and inserts any missing rows. It is safe to run any
// number of times; duplicate inserts are ignored by the store, so a
// failed run is recovered by simply running it again.
func (s *Service) Reconcile(ctx context.Context, orderID int64) error {
	ctx, span := serviceTracer.Start(ctx, "ChatService.Reconcile", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	desired := []entity.ChatParticipant{
		{OrderID: orderID, UserID: order.CustomerID, Role: entity.ParticipantCustomer, JoinedAt: now},
	}
	if order.JuniorBakerID != nil {
		desired = append(desired, entity.ChatParticipant{
			OrderID: orderID, UserID: *order.JuniorBakerID, Role: entity.ParticipantJuniorBaker, JoinedAt: now,
		})
	}
	if order.MainBakerID != nil {
		desired = append(desired, entity.ChatParticipant{
			OrderID: orderID, UserID: *order.MainBakerID, Role: entity.ParticipantMainBaker, JoinedAt: now,
		})
	}

	for i := range desired {
		if err := s.participants.AddParticipant(ctx, &desired[i]); err != nil {
			span.RecordError(err)
			return errorbank.Internal("failed to add chat participant", errorbank.WithCause(err))
		}
	}
	return nil
}

// ListParticipants returns the participant rows for an order.
func (s *Service) ListParticipants(ctx context.Context, orderID int64) ([]entity.ChatParticipant, error) {
	ctx, span := serviceTracer.Start(ctx, "ChatService.ListParticipants", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	rows, err := s.participants.ListParticipants(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list participants", errorbank.WithCause(err))
	}
	return rows, nil
}

// PostSystemMessage appends a system-authored entry to an order's
// message log, used to notify the customer of assignment changes.
func (s *Service) PostSystemMessage(ctx context.Context, orderID int64, body string) error {
	if body == "" {
		return errorbank.BadRequest("message body is required")
	}
	ctx, span := serviceTracer.Start(ctx, "ChatService.PostSystemMessage", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	message := &entity.ChatMessage{
		OrderID:   orderID,
		Body:      body,
		IsSystem:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.participants.AppendMessage(ctx, message); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to append system message", errorbank.WithCause(err))
	}

	s.logger.Debug("system message posted", zap.Int64("order_id", orderID))
	return nil
}
