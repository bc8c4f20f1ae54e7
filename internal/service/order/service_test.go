package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/entity"
	repo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	"github.com/bakehouse-app/bakehouse/internal/service/payout"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

type stubRepo struct {
	orders       map[int64]*entity.Order
	updateCalls  int
	nextID       int64
	beforeUpdate func()
}

func newStubRepo(orders ...*entity.Order) *stubRepo {
	s := &stubRepo{orders: make(map[int64]*entity.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
		if o.ID > s.nextID {
			s.nextID = o.ID
		}
	}
	return s
}

func (s *stubRepo) Create(_ context.Context, order *entity.Order) error {
	s.nextID++
	order.ID = s.nextID
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *stubRepo) GetByCode(_ context.Context, code string) (*entity.Order, error) {
	for _, order := range s.orders {
		if order.Code == code {
			cp := *order
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *stubRepo) ListByCustomer(_ context.Context, customerID int64) ([]entity.Order, error) {
	var out []entity.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubRepo) ListByBaker(_ context.Context, bakerID int64) ([]entity.Order, error) {
	var out []entity.Order
	for _, order := range s.orders {
		if (order.MainBakerID != nil && *order.MainBakerID == bakerID) ||
			(order.JuniorBakerID != nil && *order.JuniorBakerID == bakerID) {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, id int64, from, to entity.OrderStatus, at time.Time) error {
	s.updateCalls++
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return repo.ErrStaleState
	}
	order.Status = to
	order.UpdatedAt = at
	return nil
}

type stubDistributor struct {
	calls int
	err   error
}

func (s *stubDistributor) Distribute(_ context.Context, orderID int64) (payout.Outcome, error) {
	s.calls++
	if s.err != nil {
		return payout.Outcome{}, s.err
	}
	return payout.Outcome{OrderID: orderID, Status: payout.StatusDistributed}, nil
}

func newTestService(r Repository, d Distributor) *Service {
	return &Service{repo: r, distributor: d, logger: zap.NewNop()}
}

func ptr(v int64) *int64 { return &v }

func TestCanTransitionMatrix(t *testing.T) {
	valid := []struct{ from, to entity.OrderStatus }{
		{entity.StatusPending, entity.StatusProcessing},
		{entity.StatusProcessing, entity.StatusQualityCheck},
		{entity.StatusQualityCheck, entity.StatusReady},
		{entity.StatusReady, entity.StatusDelivered},
		{entity.StatusPending, entity.StatusCancelled},
		{entity.StatusProcessing, entity.StatusCancelled},
		{entity.StatusQualityCheck, entity.StatusCancelled},
		{entity.StatusReady, entity.StatusCancelled},
	}
	for _, tc := range valid {
		assert.True(t, canTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	invalid := []struct{ from, to entity.OrderStatus }{
		{entity.StatusPending, entity.StatusQualityCheck},
		{entity.StatusPending, entity.StatusReady},
		{entity.StatusPending, entity.StatusDelivered},
		{entity.StatusProcessing, entity.StatusPending},
		{entity.StatusProcessing, entity.StatusDelivered},
		{entity.StatusQualityCheck, entity.StatusProcessing},
		{entity.StatusReady, entity.StatusQualityCheck},
		{entity.StatusDelivered, entity.StatusCancelled},
		{entity.StatusDelivered, entity.StatusPending},
		{entity.StatusCancelled, entity.StatusPending},
		{entity.StatusCancelled, entity.StatusDelivered},
	}
	for _, tc := range invalid {
		assert.False(t, canTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestCreateDefaultsToPending(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r, nil)

	order, err := svc.Create(context.Background(), 5, ptr(10), 33.00, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.Code, "BH-"), "code %q", order.Code)
	assert.Len(t, order.Code, 13)
	assert.Equal(t, int64(5), order.CustomerID)
	require.NotNil(t, order.MainBakerID)
	assert.Equal(t, int64(10), *order.MainBakerID)
}

func TestCreateRejectsNegativeTotal(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)

	_, err := svc.Create(context.Background(), 5, nil, -1.00, nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestTransitionAdvancesStatus(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusPending})
	svc := newTestService(r, nil)

	order, err := svc.Transition(context.Background(), 1, entity.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, order.Status)
	assert.Equal(t, entity.StatusProcessing, r.orders[1].Status)
}

func TestTransitionRejectsInvalidStep(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusPending})
	svc := newTestService(r, nil)

	_, err := svc.Transition(context.Background(), 1, entity.StatusReady)
	require.Error(t, err)

	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, appErr.Kind())
	assert.Equal(t, "pending", appErr.Details()["from"])
	assert.Equal(t, "ready", appErr.Details()["to"])

	assert.Equal(t, entity.StatusPending, r.orders[1].Status)
	assert.Zero(t, r.updateCalls)
}

func TestTransitionRejectsTerminalOrders(t *testing.T) {
	for _, status := range []entity.OrderStatus{entity.StatusDelivered, entity.StatusCancelled} {
		r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: status})
		svc := newTestService(r, nil)

		_, err := svc.Transition(context.Background(), 1, entity.StatusProcessing)
		require.Error(t, err, "from %s", status)
		assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	}
}

func TestTransitionConflictOnConcurrentChange(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusPending})
	svc := newTestService(r, nil)

	// Another writer moves the order between the read and the CAS write.
	r.beforeUpdate = func() { r.orders[1].Status = entity.StatusCancelled }

	_, err := svc.Transition(context.Background(), 1, entity.StatusProcessing)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)

	_, err := svc.Transition(context.Background(), 404, entity.StatusProcessing)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestMarkDeliveredRequiresOwningCustomer(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusReady})
	d := &stubDistributor{}
	svc := newTestService(r, d)

	_, err := svc.MarkDelivered(context.Background(), 1, 99)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
	assert.Zero(t, d.calls)
	assert.Equal(t, entity.StatusReady, r.orders[1].Status)
}

func TestMarkDeliveredTriggersDistribution(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, MainBakerID: ptr(10), Status: entity.StatusReady})
	d := &stubDistributor{}
	svc := newTestService(r, d)

	order, err := svc.MarkDelivered(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDelivered, order.Status)
	assert.Equal(t, 1, d.calls)
}

func TestMarkDeliveredSurvivesDistributionFailure(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, MainBakerID: ptr(10), Status: entity.StatusReady})
	d := &stubDistributor{err: errors.New("payout backend down")}
	svc := newTestService(r, d)

	order, err := svc.MarkDelivered(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDelivered, order.Status)
	assert.Equal(t, 1, d.calls)
}

func TestMarkDeliveredRejectsUnreadyOrder(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusProcessing})
	d := &stubDistributor{}
	svc := newTestService(r, d)

	_, err := svc.MarkDelivered(context.Background(), 1, 5)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	assert.Zero(t, d.calls)
}

func TestCancelFromEveryActiveStatus(t *testing.T) {
	active := []entity.OrderStatus{
		entity.StatusPending,
		entity.StatusProcessing,
		entity.StatusQualityCheck,
		entity.StatusReady,
	}
	for _, status := range active {
		r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: status})
		svc := newTestService(r, nil)

		order, err := svc.Cancel(context.Background(), 1, 5)
		require.NoError(t, err, "from %s", status)
		assert.Equal(t, entity.StatusCancelled, order.Status)
	}
}

func TestCancelRequiresOwningCustomer(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusPending})
	svc := newTestService(r, nil)

	_, err := svc.Cancel(context.Background(), 1, 99)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestCancelRejectsTerminalOrder(t *testing.T) {
	r := newStubRepo(&entity.Order{ID: 1, CustomerID: 5, Status: entity.StatusDelivered})
	svc := newTestService(r, nil)

	_, err := svc.Cancel(context.Background(), 1, 5)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
}
