package team

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/database"
	"github.com/bakehouse-app/bakehouse/internal/entity"
)

var repoTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/repository/team")

// ErrNotFound is returned when a membership or application is missing.
var ErrNotFound = errors.New("record not found")

// Repository owns the baker_team relation and the role flip on
// promotion. Both writes share one table-pair transaction so a junior
// baker can never be observed in two active teams or as a promoted
// main baker still holding an active membership.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires the team repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// AssignExclusive deactivates any active membership the junior baker
// holds and creates the new one inside a single transaction.
func (r *Repository) AssignExclusive(ctx context.Context, mainBakerID, juniorBakerID int64, at time.Time) (*entity.TeamMembership, error) {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.AssignExclusive", trace.WithAttributes(
		attribute.Int64("main_baker.id", mainBakerID),
		attribute.Int64("junior_baker.id", juniorBakerID),
	))
	defer span.End()

	membership := &entity.TeamMembership{
		MainBakerID:   mainBakerID,
		JuniorBakerID: juniorBakerID,
		IsActive:      true,
		AssignedAt:    at,
	}

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := deactivateActive(ctx, tx, juniorBakerID, at); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(membership).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assign failed")
		return nil, err
	}
	return membership, nil
}

// Deactivate closes the junior baker's active membership, if any.
func (r *Repository) Deactivate(ctx context.Context, juniorBakerID int64, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.Deactivate", trace.WithAttributes(attribute.Int64("junior_baker.id", juniorBakerID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return deactivateActive(ctx, tx, juniorBakerID, at)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Promote flips the user's role to main_baker and deactivates their
// active membership in one transaction.
func (r *Repository) Promote(ctx context.Context, juniorBakerID int64, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.Promote", trace.WithAttributes(attribute.Int64("junior_baker.id", juniorBakerID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*entity.User)(nil)).
			Set("role = ?", entity.RoleMainBaker).
			Set("updated_at = ?", at).
			Where("id = ?", juniorBakerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return deactivateActive(ctx, tx, juniorBakerID, at)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "promote failed")
	}
	return err
}

// ActiveMembership returns the junior baker's active membership or
// ErrNotFound when they are unassigned.
func (r *Repository) ActiveMembership(ctx context.Context, juniorBakerID int64) (*entity.TeamMembership, error) {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.ActiveMembership", trace.WithAttributes(attribute.Int64("junior_baker.id", juniorBakerID)))
	defer span.End()

	membership := new(entity.TeamMembership)
	err := r.reader.NewSelect().Model(membership).
		Where("junior_baker_id = ?", juniorBakerID).
		Where("is_active = ?", true).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return membership, nil
}

// ListActiveByMain returns the active junior bakers under a main baker
// joined with their user records.
func (r *Repository) ListActiveByMain(ctx context.Context, mainBakerID int64) ([]entity.User, []entity.TeamMembership, error) {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.ListActiveByMain", trace.WithAttributes(attribute.Int64("main_baker.id", mainBakerID)))
	defer span.End()

	var memberships []entity.TeamMembership
	err := r.reader.NewSelect().Model(&memberships).
		Where("main_baker_id = ?", mainBakerID).
		Where("is_active = ?", true).
		Order("assigned_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if len(memberships) == 0 {
		return nil, nil, nil
	}

	ids := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.JuniorBakerID)
	}

	var users []entity.User
	err = r.reader.NewSelect().Model(&users).
		Where("id IN (?)", bun.In(ids)).
		Where("role = ?", entity.RoleJuniorBaker).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return users, memberships, nil
}

func deactivateActive(ctx context.Context, tx bun.Tx, juniorBakerID int64, at time.Time) error {
	_, err := tx.NewUpdate().Model((*entity.TeamMembership)(nil)).
		Set("is_active = ?", false).
		Set("deactivated_at = ?", at).
		Where("junior_baker_id = ?", juniorBakerID).
		Where("is_active = ?", true).
		Exec(ctx)
	return err
}
