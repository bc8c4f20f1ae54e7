package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/entity"
	orderrepo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	teamrepo "github.com/bakehouse-app/bakehouse/internal/repository/team"
	userrepo "github.com/bakehouse-app/bakehouse/internal/repository/user"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

type stubOrders struct {
	orders      map[int64]*entity.Order
	updateCalls int
}

func (s *stubOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *stubOrders) UpdateAssignment(_ context.Context, order *entity.Order) error {
	s.updateCalls++
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

type stubUsers struct {
	users map[int64]*entity.User
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*entity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, userrepo.ErrNotFound
	}
	return u, nil
}

type stubTeams struct {
	memberships map[int64]*entity.TeamMembership
}

func (s *stubTeams) ActiveMembership(_ context.Context, juniorBakerID int64) (*entity.TeamMembership, error) {
	m, ok := s.memberships[juniorBakerID]
	if !ok {
		return nil, teamrepo.ErrNotFound
	}
	return m, nil
}

type stubReconciler struct {
	calls int
	err   error
}

func (s *stubReconciler) Reconcile(_ context.Context, _ int64) error {
	s.calls++
	return s.err
}

type fixture struct {
	orders     *stubOrders
	users      *stubUsers
	teams      *stubTeams
	reconciler *stubReconciler
	svc        *Service
}

func ptr(v int64) *int64 { return &v }

// newFixture sets up order 1 owned by main baker 10 with junior baker
// 20 on their team.
func newFixture() *fixture {
	f := &fixture{
		orders: &stubOrders{orders: map[int64]*entity.Order{
			1: {ID: 1, Code: "BH-AAA", CustomerID: 5, MainBakerID: ptr(10), Status: entity.StatusPending},
		}},
		users: &stubUsers{users: map[int64]*entity.User{
			10: {ID: 10, Role: entity.RoleMainBaker},
			20: {ID: 20, Role: entity.RoleJuniorBaker},
			30: {ID: 30, Role: entity.RoleCustomer},
		}},
		teams: &stubTeams{memberships: map[int64]*entity.TeamMembership{
			20: {MainBakerID: 10, JuniorBakerID: 20, IsActive: true},
		}},
		reconciler: &stubReconciler{},
	}
	f.svc = &Service{
		orders:     f.orders,
		users:      f.users,
		teams:      f.teams,
		reconciler: f.reconciler,
		logger:     zap.NewNop(),
	}
	return f
}

func TestAssignToJunior(t *testing.T) {
	f := newFixture()
	deadline := time.Now().Add(48 * time.Hour).UTC()

	result, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, &deadline)
	require.NoError(t, err)
	assert.False(t, result.SelfAssigned)

	stored := f.orders.orders[1]
	require.NotNil(t, stored.JuniorBakerID)
	assert.Equal(t, int64(20), *stored.JuniorBakerID)
	assert.Equal(t, entity.StatusPending, stored.Status)
	require.NotNil(t, stored.Deadline)
	assert.Equal(t, deadline, *stored.Deadline)
	assert.Equal(t, 1, f.reconciler.calls)
}

func TestAssignToJuniorRequiresOwningMainBaker(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AssignToJunior(context.Background(), 1, 20, 99, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
	assert.Zero(t, f.orders.updateCalls)
}

func TestAssignToJuniorRejectsNonJuniorTarget(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AssignToJunior(context.Background(), 1, 30, 10, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
	assert.Zero(t, f.orders.updateCalls)
}

func TestAssignToJuniorRejectsOtherTeamsJunior(t *testing.T) {
	f := newFixture()
	f.teams.memberships[20].MainBakerID = 99

	_, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
	assert.Zero(t, f.orders.updateCalls)
}

func TestAssignToJuniorRejectsJuniorWithoutTeam(t *testing.T) {
	f := newFixture()
	delete(f.teams.memberships, 20)

	_, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestAssignToJuniorRejectsClosedOrder(t *testing.T) {
	f := newFixture()
	f.orders.orders[1].Status = entity.StatusDelivered

	_, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
}

func TestAssignToJuniorSurvivesReconcileFailure(t *testing.T) {
	f := newFixture()
	f.reconciler.err = errors.New("chat store down")

	result, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Order.JuniorBakerID)
	assert.Equal(t, 1, f.orders.updateCalls)
}

func TestTakeSelfClearsJuniorAssignment(t *testing.T) {
	f := newFixture()
	f.orders.orders[1].JuniorBakerID = ptr(20)

	result, err := f.svc.TakeSelf(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	assert.True(t, result.SelfAssigned)

	stored := f.orders.orders[1]
	assert.Nil(t, stored.JuniorBakerID)
	assert.Equal(t, entity.StatusProcessing, stored.Status)
	assert.Equal(t, 1, f.reconciler.calls)
}

func TestTakeSelfRequiresOwningMainBaker(t *testing.T) {
	f := newFixture()

	_, err := f.svc.TakeSelf(context.Background(), 1, 99, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestTakeSelfUnknownOrder(t *testing.T) {
	f := newFixture()

	_, err := f.svc.TakeSelf(context.Background(), 404, 10, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestAssignIsRepeatableWithSameParameters(t *testing.T) {
	f := newFixture()

	first, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.NoError(t, err)
	second, err := f.svc.AssignToJunior(context.Background(), 1, 20, 10, nil)
	require.NoError(t, err)

	assert.Equal(t, *first.Order.JuniorBakerID, *second.Order.JuniorBakerID)
	assert.Equal(t, entity.StatusPending, second.Order.Status)
	assert.Equal(t, 2, f.reconciler.calls)
}
