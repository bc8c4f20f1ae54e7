package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/config"
	"github.com/bakehouse-app/bakehouse/internal/messaging"
	assignmentsvc "github.com/bakehouse-app/bakehouse/internal/service/assignment"
	chatsvc "github.com/bakehouse-app/bakehouse/internal/service/chat"
	"github.com/bakehouse-app/bakehouse/internal/worker"
)

var workerTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/worker/chat")

// Module registers the assignment notification worker handler.
var Module = fx.Module("worker_chat",
	fx.Provide(
		fx.Annotate(
			NewAssignmentNoticeHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewAssignmentNoticeHandler consumes assignment events and posts the
// customer-facing system message into the order chat. Delivery is
// at-least-once; a duplicate notice is tolerated, so the handler does
// not deduplicate.
func NewAssignmentNoticeHandler(svc *chatsvc.Service, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.chat.assignmentNotice", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Error("failed to decode event envelope", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		if envelope.Type != assignmentsvc.EventOrderAssigned {
			return nil
		}

		var event assignmentsvc.OrderAssignedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order assigned event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		body := fmt.Sprintf("Your order %s is now being prepared by your main baker.", event.OrderCode)
		if !event.SelfAssigned {
			body = fmt.Sprintf("Your order %s has been assigned to a baker on the team.", event.OrderCode)
		}
		if event.Deadline != nil {
			body += fmt.Sprintf(" Expected completion: %s.", event.Deadline.Format("Jan 2, 2006 15:04"))
		}

		if err := svc.PostSystemMessage(ctx, event.OrderID, body); err != nil {
			span.RecordError(err)
			return err
		}

		logger.Info("assignment notice posted",
			zap.Int64("order_id", event.OrderID),
			zap.Bool("self_assigned", event.SelfAssigned),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
