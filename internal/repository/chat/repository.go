package chat

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/database"
	"github.com/bakehouse-app/bakehouse/internal/entity"
)

var repoTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/repository/chat")

// Repository owns chat participants and the append-only message log.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires the chat repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// AddParticipant inserts a participant row with insert-or-ignore
// semantics on (order_id, user_id). Re-adding an existing participant
// is a no-op, not an error.
func (r *Repository) AddParticipant(ctx context.Context, participant *entity.ChatParticipant) error {
	if participant == nil {
		return errors.New("nil participant")
	}
	ctx, span := repoTracer.Start(ctx, "ChatRepository.AddParticipant", trace.WithAttributes(
		attribute.Int64("order.id", participant.OrderID),
		attribute.Int64("user.id", participant.UserID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(participant).
		On("CONFLICT (order_id, user_id) DO NOTHING").
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListParticipants returns an order's participants in join order.
func (r *Repository) ListParticipants(ctx context.Context, orderID int64) ([]entity.ChatParticipant, error) {
	ctx, span := repoTracer.Start(ctx, "ChatRepository.ListParticipants", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var participants []entity.ChatParticipant
	err := r.reader.NewSelect().Model(&participants).
		Where("order_id = ?", orderID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return participants, nil
}

// AppendMessage appends one entry to an order's message log.
func (r *Repository) AppendMessage(ctx context.Context, message *entity.ChatMessage) error {
	if message == nil {
		return errors.New("nil message")
	}
	ctx, span := repoTracer.Start(ctx, "ChatRepository.AppendMessage", trace.WithAttributes(attribute.Int64("order.id", message.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(message).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

