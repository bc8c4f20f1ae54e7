package earnings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/database"
	"github.com/bakehouse-app/bakehouse/internal/entity"
)

var repoTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/repository/earnings")

// ErrAlreadyDistributed is returned when earnings rows already exist
// for the order, either observed inside the transaction or surfaced by
// the unique constraint when two distributors race.
var ErrAlreadyDistributed = errors.New("earnings already distributed for order")

// BakerSummary is one row of the all-bakers aggregation.
type BakerSummary struct {
	BakerID int64   `bun:"baker_id"`
	Orders  int64   `bun:"orders"`
	Total   float64 `bun:"total"`
}

// Repository owns the baker_earnings row set.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires the earnings repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// InsertDistribution writes all legs of an order's split exactly once.
// The order row is locked for the duration of the transaction so the
// existence check and the inserts act as one unit; the unique index on
// (order_id, baker_id) backstops drivers without row locking.
func (r *Repository) InsertDistribution(ctx context.Context, orderID int64, legs []entity.BakerEarning) error {
	if len(legs) == 0 {
		return errors.New("no earnings legs to insert")
	}
	ctx, span := repoTracer.Start(ctx, "EarningsRepository.InsertDistribution", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var locked entity.Order
		if err := tx.NewSelect().Model(&locked).
			Column("id").
			Where("id = ?", orderID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return err
		}

		existing, err := tx.NewSelect().Model((*entity.BakerEarning)(nil)).
			Where("order_id = ?", orderID).
			Count(ctx)
		if err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyDistributed
		}

		_, err = tx.NewInsert().Model(&legs).Exec(ctx)
		return err
	})
	if database.IsUniqueViolation(err) {
		return ErrAlreadyDistributed
	}
	if err != nil && !errors.Is(err, ErrAlreadyDistributed) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "distribution insert failed")
	}
	return err
}

// ExistsForOrder reports whether any earnings row references the order.
func (r *Repository) ExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "EarningsRepository.ExistsForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	count, err := r.reader.NewSelect().Model((*entity.BakerEarning)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return count > 0, nil
}

// TotalByBaker sums a baker's earnings across all orders.
func (r *Repository) TotalByBaker(ctx context.Context, bakerID int64) (float64, error) {
	ctx, span := repoTracer.Start(ctx, "EarningsRepository.TotalByBaker", trace.WithAttributes(attribute.Int64("baker.id", bakerID)))
	defer span.End()

	var total sql.NullFloat64
	err := r.reader.NewSelect().Model((*entity.BakerEarning)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("baker_id = ?", bakerID).
		Scan(ctx, &total)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return total.Float64, nil
}

// ListByBaker returns a baker's earnings rows, newest first.
func (r *Repository) ListByBaker(ctx context.Context, bakerID int64) ([]entity.BakerEarning, error) {
	ctx, span := repoTracer.Start(ctx, "EarningsRepository.ListByBaker", trace.WithAttributes(attribute.Int64("baker.id", bakerID)))
	defer span.End()

	var rows []entity.BakerEarning
	err := r.reader.NewSelect().Model(&rows).
		Where("baker_id = ?", bakerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rows, nil
}

// SummaryAll aggregates totals per baker across the marketplace.
func (r *Repository) SummaryAll(ctx context.Context) ([]BakerSummary, error) {
	ctx, span := repoTracer.Start(ctx, "EarningsRepository.SummaryAll")
	defer span.End()

	var rows []BakerSummary
	err := r.reader.NewSelect().Model((*entity.BakerEarning)(nil)).
		ColumnExpr("baker_id").
		ColumnExpr("COUNT(DISTINCT order_id) AS orders").
		ColumnExpr("SUM(amount) AS total").
		GroupExpr("baker_id").
		OrderExpr("total DESC").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rows, nil
}
