package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/cache"
	"github.com/bakehouse-app/bakehouse/internal/config"
	"github.com/bakehouse-app/bakehouse/internal/entity"
	"github.com/bakehouse-app/bakehouse/internal/messaging"
	earningsrepo "github.com/bakehouse-app/bakehouse/internal/repository/earnings"
	orderrepo "github.com/bakehouse-app/bakehouse/internal/repository/order"
	"github.com/bakehouse-app/bakehouse/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/bakehouse-app/bakehouse/service/payout")

// Revenue split percentages. Fixed business rule, not configuration.
const (
	JuniorSharePercent = 70.00
	MainSharePercent   = 30.00
	SoloSharePercent   = 100.00
)

// Status classifies the outcome of a distribution attempt. All of the
// no-op variants are safe results, not failures, so that retrying
// Distribute after it already succeeded never double-pays.
type Status string

const (
	StatusDistributed        Status = "distributed"
	StatusAlreadyDistributed Status = "already_distributed"
	StatusNotDelivered       Status = "not_delivered"
	StatusNoMainBaker        Status = "no_main_baker"
)

// Leg is one baker's share of an order's revenue. Each leg's amount is
// rounded independently and is authoritative; legs are not required to
// re-sum to the rounded order total.
type Leg struct {
	BakerID    int64            `json:"baker_id"`
	Role       entity.BakerRole `json:"role"`
	Amount     float64          `json:"amount"`
	Percentage float64          `json:"percentage"`
}

// Outcome summarizes a distribution attempt.
type Outcome struct {
	OrderID       int64     `json:"order_id"`
	Status        Status    `json:"status"`
	Total         float64   `json:"total,omitempty"`
	Legs          []Leg     `json:"legs,omitempty"`
	DistributedAt time.Time `json:"distributed_at,omitempty"`
}

// Orders is the order lookup contract used by the payout service.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Earnings is the baker_earnings contract used by the payout service.
type Earnings interface {
	InsertDistribution(ctx context.Context, orderID int64, legs []entity.BakerEarning) error
	TotalByBaker(ctx context.Context, bakerID int64) (float64, error)
	ListByBaker(ctx context.Context, bakerID int64) ([]entity.BakerEarning, error)
	SummaryAll(ctx context.Context) ([]earningsrepo.BakerSummary, error)
}

// Service distributes order revenue between bakers on delivery and
// serves earnings aggregations.
type Service struct {
	orders    Orders
	earnings  Earnings
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *orderrepo.Repository
	Earnings  *earningsrepo.Repository
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new payout Service.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		earnings:  p.Earnings,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
	}
}

// Distribute splits an order's revenue into baker earnings exactly
// once. Orders with an assigned junior baker split 70/30 between the
// junior and main baker; personally fulfilled orders pay the main
// baker in full. Every repeated call after the first succeeds returns
// StatusAlreadyDistributed and writes nothing.
func (s *Service) Distribute(ctx context.Context, orderID int64) (Outcome, error) {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.Distribute", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return Outcome{}, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return Outcome{}, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if order.Status != entity.StatusDelivered {
		return Outcome{OrderID: orderID, Status: StatusNotDelivered}, nil
	}
	if order.MainBakerID == nil {
		return Outcome{OrderID: orderID, Status: StatusNoMainBaker}, nil
	}

	now := time.Now().UTC()
	legs := splitRevenue(order)

	rows := make([]entity.BakerEarning, 0, len(legs))
	for _, leg := range legs {
		rows = append(rows, entity.BakerEarning{
			OrderID:    orderID,
			BakerID:    leg.BakerID,
			BakerRole:  leg.Role,
			Amount:     leg.Amount,
			Percentage: leg.Percentage,
			CreatedAt:  now,
		})
	}

	if err := s.earnings.InsertDistribution(ctx, orderID, rows); err != nil {
		if errors.Is(err, earningsrepo.ErrAlreadyDistributed) {
			return Outcome{OrderID: orderID, Status: StatusAlreadyDistributed}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "distribution failed")
		return Outcome{}, errorbank.Internal("failed to record earnings", errorbank.WithCause(err))
	}

	outcome := Outcome{
		OrderID:       orderID,
		Status:        StatusDistributed,
		Total:         order.TotalAmount,
		Legs:          legs,
		DistributedAt: now,
	}

	s.logger.Info("order revenue distributed",
		zap.Int64("order_id", orderID),
		zap.Float64("total", order.TotalAmount),
		zap.Int("legs", len(legs)),
	)
	s.publishDistributed(ctx, order, outcome)

	return outcome, nil
}

// TotalEarnings sums a baker's lifetime earnings.
func (s *Service) TotalEarnings(ctx context.Context, bakerID int64) (float64, error) {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.TotalEarnings", trace.WithAttributes(attribute.Int64("baker.id", bakerID)))
	defer span.End()

	total, err := s.earnings.TotalByBaker(ctx, bakerID)
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to sum earnings", errorbank.WithCause(err))
	}
	return total, nil
}

// EarningsBreakdown returns a baker's per-order earnings rows.
func (s *Service) EarningsBreakdown(ctx context.Context, bakerID int64) ([]entity.BakerEarning, error) {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.EarningsBreakdown", trace.WithAttributes(attribute.Int64("baker.id", bakerID)))
	defer span.End()

	rows, err := s.earnings.ListByBaker(ctx, bakerID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list earnings", errorbank.WithCause(err))
	}
	return rows, nil
}

// AllBakersSummary aggregates totals per baker, consulting cache when
// available.
func (s *Service) AllBakersSummary(ctx context.Context) ([]earningsrepo.BakerSummary, error) {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.AllBakersSummary")
	defer span.End()

	const key = "earnings:summary"
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []earningsrepo.BakerSummary
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("earnings summary cache read failed", zap.Error(err))
		}
	}

	rows, err := s.earnings.SummaryAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to aggregate earnings", errorbank.WithCause(err))
	}

	if s.cache != nil {
		if raw, err := json.Marshal(rows); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.Warn("earnings summary cache write failed", zap.Error(err))
			}
		}
	}
	return rows, nil
}

func splitRevenue(order *entity.Order) []Leg {
	if order.JuniorBakerID != nil {
		return []Leg{
			{
				BakerID:    *order.JuniorBakerID,
				Role:       entity.EarningJuniorBaker,
				Amount:     roundCurrency(order.TotalAmount * JuniorSharePercent / 100),
				Percentage: JuniorSharePercent,
			},
			{
				BakerID:    *order.MainBakerID,
				Role:       entity.EarningMainBaker,
				Amount:     roundCurrency(order.TotalAmount * MainSharePercent / 100),
				Percentage: MainSharePercent,
			},
		}
	}
	return []Leg{
		{
			BakerID:    *order.MainBakerID,
			Role:       entity.EarningMainBaker,
			Amount:     roundCurrency(order.TotalAmount),
			Percentage: SoloSharePercent,
		},
	}
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}

// PayoutDistributedEvent is emitted when an order's revenue has been
// split into earnings records.
type PayoutDistributedEvent struct {
	Type          string    `json:"type"`
	OrderID       int64     `json:"order_id"`
	OrderCode     string    `json:"order_code"`
	Total         float64   `json:"total"`
	Legs          []Leg     `json:"legs"`
	DistributedAt time.Time `json:"distributed_at"`
}

// EventPayoutDistributed discriminates payout events on the bus.
const EventPayoutDistributed = "payout.distributed"

func (s *Service) publishDistributed(ctx context.Context, order *entity.Order, outcome Outcome) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := PayoutDistributedEvent{
		Type:          EventPayoutDistributed,
		OrderID:       order.ID,
		OrderCode:     order.Code,
		Total:         outcome.Total,
		Legs:          outcome.Legs,
		DistributedAt: outcome.DistributedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal payout distributed", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish payout distributed", zap.Error(err))
	}
}
