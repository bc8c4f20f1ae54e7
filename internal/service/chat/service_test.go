package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/entity"
	orderrepo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

type stubOrders struct {
	orders map[int64]*entity.Order
}

func (s *stubOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

type participantKey struct {
	orderID int64
	userID  int64
}

// stubParticipants mirrors the insert-or-ignore behavior of the real
// store: a second insert for the same (order, user) pair is a no-op.
type stubParticipants struct {
	participants map[participantKey]entity.ChatParticipant
	messages     []entity.ChatMessage
}

func newStubParticipants() *stubParticipants {
	return &stubParticipants{participants: make(map[participantKey]entity.ChatParticipant)}
}

func (s *stubParticipants) AddParticipant(_ context.Context, participant *entity.ChatParticipant) error {
	key := participantKey{orderID: participant.OrderID, userID: participant.UserID}
	if _, ok := s.participants[key]; ok {
		return nil
	}
	s.participants[key] = *participant
	return nil
}

func (s *stubParticipants) ListParticipants(_ context.Context, orderID int64) ([]entity.ChatParticipant, error) {
	var out []entity.ChatParticipant
	for _, p := range s.participants {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubParticipants) AppendMessage(_ context.Context, message *entity.ChatMessage) error {
	s.messages = append(s.messages, *message)
	return nil
}

func ptr(v int64) *int64 { return &v }

func newTestService(orders *stubOrders, participants *stubParticipants) *Service {
	return &Service{orders: orders, participants: participants, logger: zap.NewNop()}
}

func TestReconcileAddsAllLinkedParties(t *testing.T) {
	orders := &stubOrders{orders: map[int64]*entity.Order{
		1: {ID: 1, CustomerID: 5, MainBakerID: ptr(10), JuniorBakerID: ptr(20), Status: entity.StatusPending},
	}}
	store := newStubParticipants()
	svc := newTestService(orders, store)

	require.NoError(t, svc.Reconcile(context.Background(), 1))

	rows, err := svc.ListParticipants(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	roles := make(map[int64]entity.ParticipantRole, len(rows))
	for _, p := range rows {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, entity.ParticipantCustomer, roles[5])
	assert.Equal(t, entity.ParticipantMainBaker, roles[10])
	assert.Equal(t, entity.ParticipantJuniorBaker, roles[20])
}

func TestReconcileIsRepeatable(t *testing.T) {
	orders := &stubOrders{orders: map[int64]*entity.Order{
		1: {ID: 1, CustomerID: 5, MainBakerID: ptr(10), JuniorBakerID: ptr(20)},
	}}
	store := newStubParticipants()
	svc := newTestService(orders, store)

	require.NoError(t, svc.Reconcile(context.Background(), 1))
	require.NoError(t, svc.Reconcile(context.Background(), 1))

	rows, err := svc.ListParticipants(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReconcileWithoutBakers(t *testing.T) {
	orders := &stubOrders{orders: map[int64]*entity.Order{
		1: {ID: 1, CustomerID: 5},
	}}
	store := newStubParticipants()
	svc := newTestService(orders, store)

	require.NoError(t, svc.Reconcile(context.Background(), 1))

	rows, err := svc.ListParticipants(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ParticipantCustomer, rows[0].Role)
}

func TestReconcileKeepsHistoricalParticipants(t *testing.T) {
	orders := &stubOrders{orders: map[int64]*entity.Order{
		1: {ID: 1, CustomerID: 5, MainBakerID: ptr(10), JuniorBakerID: ptr(20)},
	}}
	store := newStubParticipants()
	svc := newTestService(orders, store)

	require.NoError(t, svc.Reconcile(context.Background(), 1))

	// Junior baker 20 is reassigned away; their participant row stays.
	orders.orders[1].JuniorBakerID = ptr(21)
	require.NoError(t, svc.Reconcile(context.Background(), 1))

	rows, err := svc.ListParticipants(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestReconcileUnknownOrder(t *testing.T) {
	svc := newTestService(&stubOrders{orders: map[int64]*entity.Order{}}, newStubParticipants())

	err := svc.Reconcile(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestPostSystemMessage(t *testing.T) {
	store := newStubParticipants()
	svc := newTestService(&stubOrders{}, store)

	require.NoError(t, svc.PostSystemMessage(context.Background(), 1, "Your order has been assigned."))

	require.Len(t, store.messages, 1)
	msg := store.messages[0]
	assert.Equal(t, int64(1), msg.OrderID)
	assert.True(t, msg.IsSystem)
	assert.Nil(t, msg.SenderID)
}

func TestPostSystemMessageRequiresBody(t *testing.T) {
	svc := newTestService(&stubOrders{}, newStubParticipants())

	err := svc.PostSystemMessage(context.Background(), 1, "")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}
