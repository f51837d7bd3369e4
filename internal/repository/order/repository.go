package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/database"
	"github.com/Additional-Code/workorders/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/workorders/repository/order")

// Module provides the order repository to Fx.
var Module = fx.Provide(NewRepository)

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStatusChanged is returned when the stored status no longer matches the
// status a transition was validated against.
var ErrStatusChanged = errors.New("order status changed concurrently")

var editableColumns = []string{
	"customer_id",
	"database_id",
	"external_ref",
	"list_description",
	"desired_quantity",
	"actual_quantity",
	"updated_at",
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// RunInTx executes fn against a repository bound to a single write transaction.
// Reads inside fn see the transaction's own writes.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repository{writer: tx, reader: tx})
	})
}

// Create persists a new order and fills in its generated id.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.Int64("order.customer_id", order.CustomerID),
		attribute.Int64("order.database_id", order.DatabaseID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Update overwrites the editable fields of an existing order.
// Status and closed_at are never written here.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column(editableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return requireRow(res, ErrNotFound)
}

// UpdateStatus writes status, closed_at and updated_at, provided the stored
// status still equals expected.
func (r *Repository) UpdateStatus(ctx context.Context, order *entity.Order, expected entity.Status) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status.from", expected.String()),
		attribute.String("order.status.to", order.Status.String()),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column("status", "closed_at", "updated_at").
		WherePK().
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return requireRow(res, ErrStatusChanged)
}

// GetByID fetches an order with its customer and database joined.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Customer").
		Relation("Database").
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders newest first, optionally restricted to one status.
func (r *Repository) List(ctx context.Context, status *entity.Status) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	orders := make([]entity.Order, 0)
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Customer").
		Relation("Database").
		Order("o.created_at DESC", "o.id DESC")
	if status != nil {
		span.SetAttributes(attribute.String("order.status", status.String()))
		q = q.Where("o.status = ?", *status)
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

type statusCount struct {
	Status entity.Status `bun:"status"`
	Count  int64         `bun:"count"`
}

// CountByStatus returns how many orders sit in each status. Statuses with
// no orders are absent from the map.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.Status]int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var rows []statusCount
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("o.status").
		ColumnExpr("COUNT(*) AS count").
		Group("o.status").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	counts := make(map[entity.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
