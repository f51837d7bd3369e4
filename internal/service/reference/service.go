package reference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/cache"
	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/entity"
	repo "github.com/Additional-Code/workorders/internal/repository/reference"
	"github.com/Additional-Code/workorders/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/workorders/service/reference")

const (
	customersKey = "reference:customers"
	databasesKey = "reference:databases"
)

// Module provides the reference data service to Fx.
var Module = fx.Provide(NewService)

// Service supplies the customer and list provider choices used to build and
// validate work orders.
type Service struct {
	repo   *repo.Repository
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:   p.Repository,
		cache:  p.Cache,
		ttl:    p.Config.Orders.ReferenceTTL,
		logger: p.Logger,
	}
}

// ListCustomers returns all customers sorted by name.
func (s *Service) ListCustomers(ctx context.Context) ([]entity.Customer, error) {
	ctx, span := serviceTracer.Start(ctx, "ReferenceService.ListCustomers")
	defer span.End()

	var customers []entity.Customer
	if s.cached(ctx, customersKey, &customers) {
		return customers, nil
	}

	customers, err := s.repo.Customers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Unavailable("customers unavailable", errorbank.WithCause(err))
	}

	s.store(ctx, customersKey, customers)
	return customers, nil
}

// ListDatabases returns all list provider databases sorted by name.
func (s *Service) ListDatabases(ctx context.Context) ([]entity.ListDatabase, error) {
	ctx, span := serviceTracer.Start(ctx, "ReferenceService.ListDatabases")
	defer span.End()

	var databases []entity.ListDatabase
	if s.cached(ctx, databasesKey, &databases) {
		return databases, nil
	}

	databases, err := s.repo.Databases(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Unavailable("list databases unavailable", errorbank.WithCause(err))
	}

	s.store(ctx, databasesKey, databases)
	return databases, nil
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil || s.ttl <= 0 {
		return false
	}
	bytes, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(bytes, dest); err != nil {
		if s.logger != nil {
			s.logger.Warn("reference cache entry corrupt", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	bytes, err := json.Marshal(value)
	if err == nil {
		err = s.cache.Set(ctx, key, bytes, s.ttl)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}
