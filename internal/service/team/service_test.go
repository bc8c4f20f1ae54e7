package team

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/entity"
	teamrepo "github.com/bakehouse-app/bakehouse/internal/repository/team"
	userrepo "github.com/bakehouse-app/bakehouse/internal/repository/user"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

type stubMemberships struct {
	active       map[int64]*entity.TeamMembership
	applications map[int64]*entity.BakerApplication
	nextAppID    int64
	promoteCalls []int64
	assignCalls  [][2]int64
}

func newStubMemberships() *stubMemberships {
	return &stubMemberships{
		active:       make(map[int64]*entity.TeamMembership),
		applications: make(map[int64]*entity.BakerApplication),
	}
}

func (s *stubMemberships) AssignExclusive(_ context.Context, mainBakerID, juniorBakerID int64, at time.Time) (*entity.TeamMembership, error) {
	s.assignCalls = append(s.assignCalls, [2]int64{mainBakerID, juniorBakerID})
	if prev, ok := s.active[juniorBakerID]; ok {
		prev.IsActive = false
		prev.DeactivatedAt = &at
	}
	m := &entity.TeamMembership{
		MainBakerID:   mainBakerID,
		JuniorBakerID: juniorBakerID,
		IsActive:      true,
		AssignedAt:    at,
	}
	s.active[juniorBakerID] = m
	return m, nil
}

func (s *stubMemberships) Promote(_ context.Context, juniorBakerID int64, at time.Time) error {
	s.promoteCalls = append(s.promoteCalls, juniorBakerID)
	if prev, ok := s.active[juniorBakerID]; ok {
		prev.IsActive = false
		prev.DeactivatedAt = &at
	}
	return nil
}

func (s *stubMemberships) ActiveMembership(_ context.Context, juniorBakerID int64) (*entity.TeamMembership, error) {
	m, ok := s.active[juniorBakerID]
	if !ok || !m.IsActive {
		return nil, teamrepo.ErrNotFound
	}
	return m, nil
}

func (s *stubMemberships) ListActiveByMain(_ context.Context, mainBakerID int64) ([]entity.User, []entity.TeamMembership, error) {
	var memberships []entity.TeamMembership
	for _, m := range s.active {
		if m.IsActive && m.MainBakerID == mainBakerID {
			memberships = append(memberships, *m)
		}
	}
	users := make([]entity.User, 0, len(memberships))
	for _, m := range memberships {
		users = append(users, entity.User{ID: m.JuniorBakerID, Role: entity.RoleJuniorBaker})
	}
	return users, memberships, nil
}

func (s *stubMemberships) CreateApplication(_ context.Context, app *entity.BakerApplication) error {
	s.nextAppID++
	app.ID = s.nextAppID
	cp := *app
	s.applications[app.ID] = &cp
	return nil
}

func (s *stubMemberships) GetApplication(_ context.Context, id int64) (*entity.BakerApplication, error) {
	app, ok := s.applications[id]
	if !ok {
		return nil, teamrepo.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *stubMemberships) ResolveApplication(_ context.Context, id int64, status entity.ApplicationStatus, at time.Time) error {
	app, ok := s.applications[id]
	if !ok || app.Status != entity.ApplicationPending {
		return teamrepo.ErrNotFound
	}
	app.Status = status
	app.ReviewedAt = &at
	return nil
}

type stubUsers struct {
	users       map[int64]*entity.User
	roleChanges map[int64]entity.UserRole
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*entity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, userrepo.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) UpdateRole(_ context.Context, id int64, role entity.UserRole, _ time.Time) error {
	if s.roleChanges == nil {
		s.roleChanges = make(map[int64]entity.UserRole)
	}
	s.roleChanges[id] = role
	if u, ok := s.users[id]; ok {
		u.Role = role
	}
	return nil
}

type fixture struct {
	memberships *stubMemberships
	users       *stubUsers
	svc         *Service
}

func ptr(v int64) *int64 { return &v }

func newFixture() *fixture {
	f := &fixture{
		memberships: newStubMemberships(),
		users: &stubUsers{users: map[int64]*entity.User{
			1:  {ID: 1, Role: entity.RoleAdmin},
			10: {ID: 10, Role: entity.RoleMainBaker},
			11: {ID: 11, Role: entity.RoleMainBaker},
			20: {ID: 20, Role: entity.RoleJuniorBaker},
			30: {ID: 30, Role: entity.RoleCustomer},
		}},
	}
	f.svc = &Service{
		memberships: f.memberships,
		users:       f.users,
		logger:      zap.NewNop(),
	}
	return f
}

func TestAssignDeactivatesPreviousMembership(t *testing.T) {
	f := newFixture()

	first, err := f.svc.Assign(context.Background(), 10, 20)
	require.NoError(t, err)
	require.True(t, first.IsActive)

	second, err := f.svc.Assign(context.Background(), 11, 20)
	require.NoError(t, err)
	assert.True(t, second.IsActive)
	assert.Equal(t, int64(11), second.MainBakerID)

	assert.False(t, first.IsActive)
	assert.NotNil(t, first.DeactivatedAt)
}

func TestAssignChecksRoles(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Assign(context.Background(), 30, 20)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	_, err = f.svc.Assign(context.Background(), 10, 30)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestListTeamReturnsActiveJuniors(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Assign(context.Background(), 10, 20)
	require.NoError(t, err)

	members, err := f.svc.ListTeam(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(20), members[0].User.ID)
	assert.False(t, members[0].AssignedAt.IsZero())
}

func TestPromoteSeversActiveMembership(t *testing.T) {
	f := newFixture()
	membership, err := f.svc.Assign(context.Background(), 10, 20)
	require.NoError(t, err)

	err = f.svc.Promote(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, f.memberships.promoteCalls)
	assert.False(t, membership.IsActive)
}

func TestPromoteRequiresJuniorRole(t *testing.T) {
	f := newFixture()

	err := f.svc.Promote(context.Background(), 30)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
	assert.Empty(t, f.memberships.promoteCalls)
}

func TestApplyJoinTeam(t *testing.T) {
	f := newFixture()

	app, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, ptr(10))
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationPending, app.Status)
	assert.Equal(t, entity.ApplicationJoinTeam, app.Type)
	require.NotNil(t, app.MainBakerID)
	assert.Equal(t, int64(10), *app.MainBakerID)
}

func TestApplyJoinTeamRequiresMainBaker(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestApplyJoinTeamRequiresCustomerApplicant(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Apply(context.Background(), 20, entity.ApplicationJoinTeam, ptr(10))
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestApplyPromotionRequiresJuniorApplicant(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Apply(context.Background(), 30, entity.ApplicationPromotion, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	app, err := f.svc.Apply(context.Background(), 20, entity.ApplicationPromotion, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationPromotion, app.Type)
}

func TestReviewJoinOnlyByTargetedMainBaker(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, ptr(10))
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), app.ID, 11, true)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())

	_, err = f.svc.Review(context.Background(), app.ID, 1, true)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestReviewApproveJoinPlacesApplicantOnTeam(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, ptr(10))
	require.NoError(t, err)

	reviewed, err := f.svc.Review(context.Background(), app.ID, 10, true)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationApproved, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedAt)

	assert.Equal(t, entity.RoleJuniorBaker, f.users.roleChanges[30])
	require.Len(t, f.memberships.assignCalls, 1)
	assert.Equal(t, [2]int64{10, 30}, f.memberships.assignCalls[0])
}

func TestReviewPromotionOnlyByAdmin(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Apply(context.Background(), 20, entity.ApplicationPromotion, nil)
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), app.ID, 10, true)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())

	reviewed, err := f.svc.Review(context.Background(), app.ID, 1, true)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationApproved, reviewed.Status)
	assert.Equal(t, []int64{20}, f.memberships.promoteCalls)
}

func TestReviewRejectHasNoSideEffects(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, ptr(10))
	require.NoError(t, err)

	reviewed, err := f.svc.Review(context.Background(), app.ID, 10, false)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationRejected, reviewed.Status)
	assert.Empty(t, f.memberships.assignCalls)
	assert.Empty(t, f.users.roleChanges)
}

func TestReviewTwiceConflicts(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Apply(context.Background(), 30, entity.ApplicationJoinTeam, ptr(10))
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), app.ID, 10, true)
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), app.ID, 10, true)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
}

func TestReviewUnknownApplication(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Review(context.Background(), 404, 10, true)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}
