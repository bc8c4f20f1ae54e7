package team

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
	teamrepo "github.com/bakehouse-app/bakehouse/internal/repository/team"
	userrepo "github.com/bakehouse-app/bakehouse/internal/repository/user"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/service/team")

// Memberships is the baker_team persistence contract.
type Memberships interface {
	AssignExclusive(ctx context.Context, mainBakerID, juniorBakerID int64, at time.Time) (*entity.TeamMembership, error)
	Promote(ctx context.Context, juniorBakerID int64, at time.Time) error
	ActiveMembership(ctx context.Context, juniorBakerID int64) (*entity.TeamMembership, error)
	ListActiveByMain(ctx context.Context, mainBakerID int64) ([]entity.User, []entity.TeamMembership, error)
	CreateApplication(ctx context.Context, app *entity.BakerApplication) error
	GetApplication(ctx context.Context, id int64) (*entity.BakerApplication, error)
	ResolveApplication(ctx context.Context, id int64, status entity.ApplicationStatus, at time.Time) error
}

// Users is the account contract used for role checks and updates.
type Users interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	UpdateRole(ctx context.Context, id int64, role entity.UserRole, at time.Time) error
}

// Member pairs a junior baker with their membership record.
type Member struct {
	User       entity.User
	AssignedAt time.Time
}

// Service is the baker team registry: it owns the active
// main-baker/junior-baker relation and the application reviews that
// mutate it. A junior baker holds at most one active membership; the
// registry deactivates the previous one before activating the next.
type Service struct {
	memberships Memberships
	users       Users
	logger      *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Memberships *teamrepo.Repository
	Users       *userrepo.Repository
	Logger      *zap.Logger
}

// NewService wires a new team Service.
func NewService(p Params) *Service {
	return &Service{
		memberships: p.Memberships,
		users:       p.Users,
		logger:      p.Logger,
	}
}

// Assign places a junior baker on a main baker's team, deactivating
// any previous active membership in the same transaction.
func (s *Service) Assign(ctx context.Context, mainBakerID, juniorBakerID int64) (*entity.TeamMembership, error) {
	ctx, span := serviceTracer.Start(ctx, "TeamService.Assign", trace.WithAttributes(
		attribute.Int64("main_baker.id", mainBakerID),
		attribute.Int64("junior_baker.id", juniorBakerID),
	))
	defer span.End()

	if err := s.requireRole(ctx, mainBakerID, entity.RoleMainBaker, "main baker not found"); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, juniorBakerID, entity.RoleJuniorBaker, "junior baker not found"); err != nil {
		return nil, err
	}

	membership, err := s.memberships.AssignExclusive(ctx, mainBakerID, juniorBakerID, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assign failed")
		return nil, errorbank.Internal("failed to assign team membership", errorbank.WithCause(err))
	}

	s.logger.Info("junior baker joined team",
		zap.Int64("main_baker_id", mainBakerID),
		zap.Int64("junior_baker_id", juniorBakerID),
	)
	return membership, nil
}

// ListTeam returns the active junior bakers under a main baker.
func (s *Service) ListTeam(ctx context.Context, mainBakerID int64) ([]Member, error) {
	ctx, span := serviceTracer.Start(ctx, "TeamService.ListTeam", trace.WithAttributes(attribute.Int64("main_baker.id", mainBakerID)))
	defer span.End()

	users, memberships, err := s.memberships.ListActiveByMain(ctx, mainBakerID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list team", errorbank.WithCause(err))
	}

	assignedAt := make(map[int64]time.Time, len(memberships))
	for _, m := range memberships {
		assignedAt[m.JuniorBakerID] = m.AssignedAt
	}

	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{User: u, AssignedAt: assignedAt[u.ID]})
	}
	return members, nil
}

// Promote flips a junior baker to main baker and severs their active
// membership atomically. A promoted user must never be observed still
// holding an active junior membership.
func (s *Service) Promote(ctx context.Context, juniorBakerID int64) error {
	ctx, span := serviceTracer.Start(ctx, "TeamService.Promote", trace.WithAttributes(attribute.Int64("junior_baker.id", juniorBakerID)))
	defer span.End()

	if err := s.requireRole(ctx, juniorBakerID, entity.RoleJuniorBaker, "junior baker not found"); err != nil {
		return err
	}

	if err := s.memberships.Promote(ctx, juniorBakerID, time.Now().UTC()); err != nil {
		if errors.Is(err, teamrepo.ErrNotFound) {
			return errorbank.NotFound("junior baker not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "promote failed")
		return errorbank.Internal("failed to promote baker", errorbank.WithCause(err))
	}

	s.logger.Info("junior baker promoted to main baker", zap.Int64("baker_id", juniorBakerID))
	return nil
}

// Apply files a baker application: join_team targets a main baker,
// promotion targets admin review.
func (s *Service) Apply(ctx context.Context, applicantID int64, appType entity.ApplicationType, mainBakerID *int64) (*entity.BakerApplication, error) {
	ctx, span := serviceTracer.Start(ctx, "TeamService.Apply", trace.WithAttributes(attribute.Int64("applicant.id", applicantID)))
	defer span.End()

	switch appType {
	case entity.ApplicationJoinTeam:
		if mainBakerID == nil {
			return nil, errorbank.BadRequest("join_team application requires a main baker")
		}
		if err := s.requireRole(ctx, *mainBakerID, entity.RoleMainBaker, "main baker not found"); err != nil {
			return nil, err
		}
		if err := s.requireRole(ctx, applicantID, entity.RoleCustomer, "applicant not found"); err != nil {
			return nil, err
		}
	case entity.ApplicationPromotion:
		if err := s.requireRole(ctx, applicantID, entity.RoleJuniorBaker, "applicant not found"); err != nil {
			return nil, err
		}
	default:
		return nil, errorbank.BadRequest("unknown application type")
	}

	app := &entity.BakerApplication{
		ApplicantID: applicantID,
		MainBakerID: mainBakerID,
		Type:        appType,
		Status:      entity.ApplicationPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.memberships.CreateApplication(ctx, app); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to create application", errorbank.WithCause(err))
	}
	return app, nil
}

// Review resolves a pending application. Join applications are
// reviewed by the targeted main baker; promotion applications by an
// admin. Approval triggers the registry side effects from exactly this
// one call site.
func (s *Service) Review(ctx context.Context, applicationID, reviewerID int64, approve bool) (*entity.BakerApplication, error) {
	ctx, span := serviceTracer.Start(ctx, "TeamService.Review", trace.WithAttributes(
		attribute.Int64("application.id", applicationID),
		attribute.Bool("approve", approve),
	))
	defer span.End()

	app, err := s.memberships.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, teamrepo.ErrNotFound) {
			return nil, errorbank.NotFound("application not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load application", errorbank.WithCause(err))
	}
	if app.Status != entity.ApplicationPending {
		return nil, errorbank.Conflict("application already reviewed")
	}

	reviewer, err := s.users.GetByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("reviewer not found")
		}
		return nil, errorbank.Internal("failed to load reviewer", errorbank.WithCause(err))
	}

	switch app.Type {
	case entity.ApplicationJoinTeam:
		if app.MainBakerID == nil || *app.MainBakerID != reviewerID || reviewer.Role != entity.RoleMainBaker {
			return nil, errorbank.Forbidden("only the targeted main baker can review this application")
		}
	case entity.ApplicationPromotion:
		if reviewer.Role != entity.RoleAdmin {
			return nil, errorbank.Forbidden("only an admin can review promotion applications")
		}
	}

	now := time.Now().UTC()
	status := entity.ApplicationRejected
	if approve {
		status = entity.ApplicationApproved
	}

	if err := s.memberships.ResolveApplication(ctx, applicationID, status, now); err != nil {
		if errors.Is(err, teamrepo.ErrNotFound) {
			return nil, errorbank.Conflict("application already reviewed")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to resolve application", errorbank.WithCause(err))
	}

	app.Status = status
	app.ReviewedAt = &now

	if !approve {
		return app, nil
	}

	switch app.Type {
	case entity.ApplicationJoinTeam:
		if err := s.users.UpdateRole(ctx, app.ApplicantID, entity.RoleJuniorBaker, now); err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to update applicant role", errorbank.WithCause(err))
		}
		if _, err := s.memberships.AssignExclusive(ctx, *app.MainBakerID, app.ApplicantID, now); err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to assign team membership", errorbank.WithCause(err))
		}
	case entity.ApplicationPromotion:
		if err := s.memberships.Promote(ctx, app.ApplicantID, now); err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to promote baker", errorbank.WithCause(err))
		}
	}

	s.logger.Info("baker application approved",
		zap.Int64("application_id", applicationID),
		zap.String("type", string(app.Type)),
	)
	return app, nil
}

func (s *Service) requireRole(ctx context.Context, userID int64, role entity.UserRole, missing string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return errorbank.NotFound(missing)
		}
		return errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}
	if u.Role != role {
		return errorbank.NotFound(missing)
	}
	return nil
}
