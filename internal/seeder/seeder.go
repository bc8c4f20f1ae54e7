package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bakehouse-app/bakehouse/internal/database"
	"github.com/bakehouse-app/bakehouse/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Run seeds a small marketplace: one admin, one main baker with a
// junior baker on their team, one customer, and a pending order.
func (s *Seeder) Run(ctx context.Context) error {
	now := time.Now().UTC()

	users := []entity.User{
		{FullName: "Ada Admin", Email: "admin@bakehouse.local", Role: entity.RoleAdmin, CreatedAt: now, UpdatedAt: now},
		{FullName: "Marta Crumb", Email: "marta@bakehouse.local", Role: entity.RoleMainBaker, CreatedAt: now, UpdatedAt: now},
		{FullName: "Jonas Rye", Email: "jonas@bakehouse.local", Role: entity.RoleJuniorBaker, CreatedAt: now, UpdatedAt: now},
		{FullName: "Casey Oven", Email: "casey@bakehouse.local", Role: entity.RoleCustomer, CreatedAt: now, UpdatedAt: now},
	}
	for i := range users {
		u := users[i]
		_, err := s.db.NewInsert().Model(&u).
			On("CONFLICT (email) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		users[i].ID = u.ID
	}

	if users[1].ID != 0 && users[2].ID != 0 {
		membership := entity.TeamMembership{
			MainBakerID:   users[1].ID,
			JuniorBakerID: users[2].ID,
			IsActive:      true,
			AssignedAt:    now,
		}
		if _, err := s.db.NewInsert().Model(&membership).Exec(ctx); err != nil {
			return err
		}
	}

	if users[1].ID != 0 && users[3].ID != 0 {
		order := entity.Order{
			Code:        "BH-SEED000001",
			CustomerID:  users[3].ID,
			MainBakerID: &users[1].ID,
			Status:      entity.StatusPending,
			TotalAmount: 42.50,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (code) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded marketplace fixtures", zap.Int("users", len(users)))
	}
	return nil
}
