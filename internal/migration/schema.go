package migration

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/workorders/internal/entity"
)

const ordersStatusIndex = "orders_status_created_at_idx"

// schemaMigrations builds the versioned Go migrations against the bun dialect
// in use, so the same steps run on postgres, mysql and sqlite.
func schemaMigrations(db *bun.DB) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return createReferenceTables(ctx, db, tx)
			}},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return dropTables(ctx, db, tx, (*entity.ListDatabase)(nil), (*entity.Customer)(nil))
			}},
		),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return createOrdersTable(ctx, db, tx)
			}},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return dropTables(ctx, db, tx, (*entity.Order)(nil))
			}},
		),
		goose.NewGoMigration(3,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				_, err := db.NewCreateIndex().
					Conn(tx).
					Model((*entity.Order)(nil)).
					Index(ordersStatusIndex).
					Column("status", "created_at").
					Exec(ctx)
				return err
			}},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				_, err := db.NewDropIndex().
					Conn(tx).
					Index(ordersStatusIndex).
					Exec(ctx)
				return err
			}},
		),
	}
}

func createReferenceTables(ctx context.Context, db *bun.DB, tx *sql.Tx) error {
	if _, err := db.NewCreateTable().Conn(tx).Model((*entity.Customer)(nil)).Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateTable().Conn(tx).Model((*entity.ListDatabase)(nil)).Exec(ctx)
	return err
}

func createOrdersTable(ctx context.Context, db *bun.DB, tx *sql.Tx) error {
	_, err := db.NewCreateTable().
		Conn(tx).
		Model((*entity.Order)(nil)).
		ForeignKey("(?) REFERENCES ? (?)", bun.Ident("customer_id"), bun.Ident("customers"), bun.Ident("id")).
		ForeignKey("(?) REFERENCES ? (?)", bun.Ident("database_id"), bun.Ident("databases"), bun.Ident("id")).
		Exec(ctx)
	return err
}

func dropTables(ctx context.Context, db *bun.DB, tx *sql.Tx, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Conn(tx).Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
