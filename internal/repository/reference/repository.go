package reference

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/database"
	"github.com/Additional-Code/workorders/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/workorders/repository/reference")

// Module provides the reference repository to Fx.
var Module = fx.Provide(NewRepository)

// Repository reads the customer and list provider tables.
type Repository struct {
	reader bun.IDB
}

// NewRepository wires a repository on the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Customers returns every customer ordered by name.
func (r *Repository) Customers(ctx context.Context) ([]entity.Customer, error) {
	ctx, span := repoTracer.Start(ctx, "ReferenceRepository.Customers")
	defer span.End()

	customers := make([]entity.Customer, 0)
	if err := r.reader.NewSelect().Model(&customers).Order("name ASC", "id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return customers, nil
}

// Databases returns every list provider database ordered by name.
func (r *Repository) Databases(ctx context.Context) ([]entity.ListDatabase, error) {
	ctx, span := repoTracer.Start(ctx, "ReferenceRepository.Databases")
	defer span.End()

	databases := make([]entity.ListDatabase, 0)
	if err := r.reader.NewSelect().Model(&databases).Order("name ASC", "id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return databases, nil
}
