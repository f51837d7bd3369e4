package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/database"
	"github.com/Additional-Code/workorders/internal/entity"
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

// Reference seeds customers and list provider databases when the tables are empty.
func (s *Seeder) Reference(ctx context.Context) error {
	customers := []entity.Customer{
		{Name: "Acme Mailers"},
		{Name: "Harbor Fundraising Group"},
		{Name: "Northwind Catalogs"},
	}
	databases := []entity.ListDatabase{
		{ListCode: "SJ", Name: "Sierra Journal Subscribers"},
		{ListCode: "GH", Name: "Green Home Buyers"},
		{ListCode: "TR", Name: "Travel Rewards Members"},
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if n, err := tx.NewSelect().Model((*entity.Customer)(nil)).Count(ctx); err != nil {
			return err
		} else if n == 0 {
			if _, err := tx.NewInsert().Model(&customers).Exec(ctx); err != nil {
				return err
			}
			s.logSeeded("seeded customers", len(customers))
		}

		if n, err := tx.NewSelect().Model((*entity.ListDatabase)(nil)).Count(ctx); err != nil {
			return err
		} else if n == 0 {
			if _, err := tx.NewInsert().Model(&databases).Exec(ctx); err != nil {
				return err
			}
			s.logSeeded("seeded databases", len(databases))
		}
		return nil
	})
}

// Orders seeds example work orders if none exist. Reference data must be present.
func (s *Seeder) Orders(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := tx.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
		if err != nil || n > 0 {
			return err
		}

		var customers []entity.Customer
		if err := tx.NewSelect().Model(&customers).Order("id").Limit(2).Scan(ctx); err != nil {
			return err
		}
		var databases []entity.ListDatabase
		if err := tx.NewSelect().Model(&databases).Order("id").Limit(2).Scan(ctx); err != nil {
			return err
		}
		if len(customers) == 0 || len(databases) == 0 {
			return nil
		}

		now := time.Now().UTC()
		ref := "SJ-04771"
		samples := []entity.Order{
			{
				CustomerID:      customers[0].ID,
				DatabaseID:      databases[0].ID,
				ExternalRef:     &ref,
				ListDescription: "Active subscribers, CA and OR, renewed within 12 months",
				DesiredQuantity: 55000,
				Status:          entity.StatusOpen,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				CustomerID:      customers[len(customers)-1].ID,
				DatabaseID:      databases[len(databases)-1].ID,
				ListDescription: "Homeowners with solar interest, income 100k+",
				DesiredQuantity: 12000,
				Status:          entity.StatusOpen,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
		}

		if _, err := tx.NewInsert().Model(&samples).Exec(ctx); err != nil {
			return err
		}
		s.logSeeded("seeded orders", len(samples))
		return nil
	})
}

func (s *Seeder) logSeeded(msg string, count int) {
	if s.logger != nil {
		s.logger.Info(msg, zap.Int("count", count))
	}
}
