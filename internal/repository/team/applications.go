package team

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse-app/bakehouse/internal/entity"
)

// CreateApplication records a new baker application in pending state.
func (r *Repository) CreateApplication(ctx context.Context, app *entity.BakerApplication) error {
	if app == nil {
		return errors.New("nil application")
	}
	ctx, span := repoTracer.Start(ctx, "TeamRepository.CreateApplication", trace.WithAttributes(attribute.Int64("applicant.id", app.ApplicantID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(app).Exec(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// GetApplication fetches an application by id.
func (r *Repository) GetApplication(ctx context.Context, id int64) (*entity.BakerApplication, error) {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.GetApplication", trace.WithAttributes(attribute.Int64("application.id", id)))
	defer span.End()

	app := new(entity.BakerApplication)
	err := r.reader.NewSelect().Model(app).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return app, nil
}

// ResolveApplication marks a pending application approved or rejected.
// The status guard keeps a second concurrent review from re-resolving
// an already reviewed application.
func (r *Repository) ResolveApplication(ctx context.Context, id int64, status entity.ApplicationStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "TeamRepository.ResolveApplication", trace.WithAttributes(
		attribute.Int64("application.id", id),
		attribute.String("application.status", string(status)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.BakerApplication)(nil)).
		Set("status = ?", status).
		Set("reviewed_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", entity.ApplicationPending).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
