package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/cache"
	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/entity"
	"github.com/Additional-Code/workorders/internal/messaging"
	repo "github.com/Additional-Code/workorders/internal/repository/order"
	"github.com/Additional-Code/workorders/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/workorders/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/workorders/service/order")
)

// ReferenceData supplies the customers and list databases an order may point at.
type ReferenceData interface {
	ListCustomers(ctx context.Context) ([]entity.Customer, error)
	ListDatabases(ctx context.Context) ([]entity.ListDatabase, error)
}

// Result is the outcome of a mutating operation: the stored order, joined
// with its reference data, and a message suitable for showing to the user.
type Result struct {
	Order   *entity.Order
	Message string
}

// Service is the sole mutator of work orders. It enforces the status
// lifecycle and its timestamp side effects.
type Service struct {
	repo        *repo.Repository
	refs        ReferenceData
	cache       cache.Store
	cacheTTL    time.Duration
	timeout     time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	validate    *validator.Validate
	now         func() time.Time
	transitions metric.Int64Counter
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	References ReferenceData
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Clock      func() time.Time `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transitions, err := serviceMeter.Int64Counter("workorders.status_transitions",
		metric.WithDescription("Work order status changes by source and target status."),
	)
	if err != nil {
		logger.Warn("status transition counter unavailable", zap.Error(err))
	}

	return &Service{
		repo:      p.Repository,
		refs:      p.References,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		timeout:   p.Config.Orders.QueryTimeout,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		validate:    newValidator(),
		now:         func() time.Time { return clock().UTC().Truncate(time.Microsecond) },
		transitions: transitions,
	}
}

// Create opens a new work order. Status starts at open with no actual
// quantity and no closed_at.
func (s *Service) Create(ctx context.Context, in Input) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("order.customer_id", in.CustomerID),
		attribute.Int64("order.database_id", in.DatabaseID),
	))
	defer span.End()

	in.normalize()
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.checkReferences(ctx, in.CustomerID, in.DatabaseID); err != nil {
		return nil, err
	}

	now := s.now()
	order := &entity.Order{
		CustomerID:      in.CustomerID,
		DatabaseID:      in.DatabaseID,
		ExternalRef:     in.externalRef(),
		ListDescription: in.ListDescription,
		DesiredQuantity: *in.DesiredQuantity,
		Status:          entity.StatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var stored *entity.Order
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx *repo.Repository) error {
		if err := tx.Create(ctx, order); err != nil {
			return err
		}
		var err error
		stored, err = tx.GetByID(ctx, order.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.storeError("failed to create order", err)
	}
	span.SetAttributes(attribute.Int64("order.id", stored.ID))

	s.refreshCache(ctx, stored)
	s.publish(ctx, newEvent(EventCreated, stored, ""))

	s.logger.Info("work order created", zap.Int64("id", stored.ID), zap.Int64("customer_id", stored.CustomerID))

	return &Result{Order: stored, Message: "Work order created successfully."}, nil
}

// Update overwrites the editable fields of an order. Status and closed_at
// are left as they are.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	in.normalize()
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.checkReferences(ctx, in.CustomerID, in.DatabaseID); err != nil {
		return nil, err
	}

	var stored *entity.Order
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx *repo.Repository) error {
		order, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		order.CustomerID = in.CustomerID
		order.DatabaseID = in.DatabaseID
		order.ExternalRef = in.externalRef()
		order.ListDescription = in.ListDescription
		order.DesiredQuantity = *in.DesiredQuantity
		order.ActualQuantity = in.ActualQuantity
		order.UpdatedAt = s.stamp(order.UpdatedAt)

		if err := tx.Update(ctx, order); err != nil {
			return err
		}
		stored, err = tx.GetByID(ctx, id)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.storeError("failed to update order", err, errorbank.WithDetail("order_id", id))
	}

	s.refreshCache(ctx, stored)
	s.publish(ctx, newEvent(EventUpdated, stored, ""))

	return &Result{Order: stored, Message: "Work order updated successfully."}, nil
}

// ChangeStatus moves an order one step along the lifecycle. The target must
// be reachable from the stored status; anything else, including the current
// status itself, is an invalid transition.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ChangeStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", target),
	))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		stored   *entity.Order
		previous entity.Status
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx *repo.Repository) error {
		order, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		previous = order.Status

		next, parseErr := entity.ParseStatus(target)
		if parseErr != nil || !previous.CanTransitionTo(next) {
			return invalidTransition(id, previous, target)
		}
		if err := order.ApplyTransition(next, s.stamp(order.UpdatedAt)); err != nil {
			return invalidTransition(id, previous, target)
		}

		if err := tx.UpdateStatus(ctx, order, previous); err != nil {
			return err
		}
		stored, err = tx.GetByID(ctx, id)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status change rejected")
		return nil, s.storeError("failed to change order status", err, errorbank.WithDetail("order_id", id))
	}

	if s.transitions != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", previous.String()),
			attribute.String("to", stored.Status.String()),
		))
	}
	s.refreshCache(ctx, stored)
	s.publish(ctx, newEvent(EventStatusChanged, stored, previous))

	s.logger.Info("work order status changed",
		zap.Int64("id", id),
		zap.String("from", previous.String()),
		zap.String("to", stored.Status.String()),
	)

	return &Result{Order: stored, Message: "Status changed to: " + stored.Status.Label()}, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
		}
		return nil, s.storeError("failed to load order", err, errorbank.WithDetail("order_id", id))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// List returns orders newest first. A recognised status narrows the result;
// an empty or unrecognised filter returns every order.
func (s *Service) List(ctx context.Context, statusFilter string) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.String("order.status_filter", statusFilter)))
	defer span.End()

	var filter *entity.Status
	if statusFilter != "" {
		if status, err := entity.ParseStatus(statusFilter); err == nil {
			filter = &status
		} else {
			s.logger.Debug("ignoring unknown status filter", zap.String("status", statusFilter))
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.storeError("failed to list orders", err)
	}
	return orders, nil
}

func (s *Service) checkReferences(ctx context.Context, customerID, databaseID int64) error {
	customers, err := s.refs.ListCustomers(ctx)
	if err != nil {
		return errorbank.From(err)
	}
	found := false
	for _, c := range customers {
		if c.ID == customerID {
			found = true
			break
		}
	}
	if !found {
		return errorbank.ReferenceNotFound(fmt.Sprintf("customer %d does not exist", customerID),
			errorbank.WithDetail("customer_id", customerID))
	}

	databases, err := s.refs.ListDatabases(ctx)
	if err != nil {
		return errorbank.From(err)
	}
	for _, d := range databases {
		if d.ID == databaseID {
			return nil
		}
	}
	return errorbank.ReferenceNotFound(fmt.Sprintf("list database %d does not exist", databaseID),
		errorbank.WithDetail("database_id", databaseID))
}

// stamp returns the next updated_at, never earlier than the stored one.
func (s *Service) stamp(previous time.Time) time.Time {
	now := s.now()
	if now.Before(previous) {
		return previous
	}
	return now
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeError translates repository failures into the service error taxonomy.
func (s *Service) storeError(message string, err error, opts ...errorbank.Option) error {
	var appErr *errorbank.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found", opts...)
	case errors.Is(err, repo.ErrStatusChanged):
		return errorbank.InvalidTransition("order status changed concurrently; reload and retry", opts...)
	default:
		s.logger.Error(message, zap.Error(err))
		return errorbank.Unavailable(message, append(opts, errorbank.WithCause(err))...)
	}
}

func invalidTransition(id int64, from entity.Status, target string) error {
	allowed := make([]string, 0, 2)
	for _, t := range from.Transitions() {
		allowed = append(allowed, t.To.String())
	}
	return errorbank.InvalidTransition(
		fmt.Sprintf("cannot change status from %s to %s", from, target),
		errorbank.WithDetails(map[string]any{
			"order_id": id,
			"from":     from.String(),
			"to":       target,
			"allowed":  allowed,
		}),
	)
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

// refreshCache replaces the cached copy after a committed write, dropping
// the entry if the new copy cannot be stored.
func (s *Service) refreshCache(ctx context.Context, order *entity.Order) {
	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
		if s.cache != nil {
			if err := s.cache.Delete(ctx, s.cacheKey(order.ID)); err != nil {
				s.logger.Warn("orders cache invalidation failed", zap.Int64("id", order.ID), zap.Error(err))
			}
		}
	}
}
