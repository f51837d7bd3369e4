package order_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/workorders/internal/cache"
	"github.com/Additional-Code/workorders/internal/entity"
	"github.com/Additional-Code/workorders/internal/messaging"
	orderrepo "github.com/Additional-Code/workorders/internal/repository/order"
	refrepo "github.com/Additional-Code/workorders/internal/repository/reference"
	"github.com/Additional-Code/workorders/internal/service/order"
	"github.com/Additional-Code/workorders/internal/service/reference"
	"github.com/Additional-Code/workorders/internal/testutil"
	"github.com/Additional-Code/workorders/pkg/errorbank"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []order.Event
	keys   []string
}

func (p *recordingPublisher) Publish(_ context.Context, key []byte, value []byte, _ map[string]string) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.keys = append(p.keys, string(key))
	return nil
}

func (p *recordingPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *recordingPublisher) Topic() string { return "workorders.events" }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *order.Service
	repo      *orderrepo.Repository
	store     *cache.MemoryStore
	publisher *recordingPublisher
	clock     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conns := testutil.NewDB(t)
	cfg := testutil.Config()
	cfg.Messaging.Enabled = true
	logger := testutil.Logger(t)

	store := cache.NewMemoryStore(time.Minute)
	publisher := &recordingPublisher{}
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		repo:      orderrepo.NewRepository(conns),
		store:     store,
		publisher: publisher,
		clock:     &clock,
	}

	refs := reference.NewService(reference.Params{
		Repository: refrepo.NewRepository(conns),
		Cache:      store,
		Config:     cfg,
		Logger:     logger,
	})

	f.svc = order.NewService(order.Params{
		Repository: f.repo,
		References: refs,
		Cache:      store,
		Config:     cfg,
		Logger:     logger,
		Publisher:  publisher,
		Clock: func() time.Time {
			*f.clock = f.clock.Add(time.Second)
			return *f.clock
		},
	})
	return f
}

func qty(n int64) *int64 { return &n }

func newInput(customerID, databaseID, desired int64) order.Input {
	return order.Input{
		CustomerID:      customerID,
		DatabaseID:      databaseID,
		ExternalRef:     "PO-1138",
		ListDescription: "Active subscribers, CA and OR",
		DesiredQuantity: qty(desired),
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Create(ctx, newInput(1, 2, 55000))
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "Work order created successfully.", res.Message)
	assert.NotZero(t, o.ID)
	assert.Equal(t, entity.StatusOpen, o.Status)
	assert.Nil(t, o.ClosedAt)
	assert.Nil(t, o.ActualQuantity)
	assert.Equal(t, int64(55000), o.DesiredQuantity)
	assert.Equal(t, "Acme Mailers", o.CustomerName())
	assert.Equal(t, "Green Home Buyers", o.DatabaseName())
	assert.Equal(t, "GH", o.ListCode())
	require.NotNil(t, o.ExternalRef)
	assert.Equal(t, "PO-1138", *o.ExternalRef)
	assert.True(t, o.CreatedAt.Equal(o.UpdatedAt))

	assert.Equal(t, []string{order.EventCreated}, f.publisher.types())
	assert.Equal(t, []string{"order-" + jsonInt(o.ID)}, f.publisher.keys)
}

func TestService_CreateBlankExternalRef(t *testing.T) {
	f := newFixture(t)

	in := newInput(1, 1, 100)
	in.ExternalRef = "   "
	res, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, res.Order.ExternalRef)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := map[string]struct {
		mutate func(*order.Input)
		field  string
	}{
		"missing customer":   {mutate: func(in *order.Input) { in.CustomerID = 0 }, field: "customer_id"},
		"missing database":   {mutate: func(in *order.Input) { in.DatabaseID = 0 }, field: "database_id"},
		"blank description":  {mutate: func(in *order.Input) { in.ListDescription = "  " }, field: "list_description"},
		"missing quantity":   {mutate: func(in *order.Input) { in.DesiredQuantity = nil }, field: "desired_quantity"},
		"negative quantity":  {mutate: func(in *order.Input) { in.DesiredQuantity = qty(-1) }, field: "desired_quantity"},
		"overlong reference": {mutate: func(in *order.Input) { in.ExternalRef = string(make([]byte, 256)) }, field: "external_ref"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := newInput(1, 1, 10)
			tc.mutate(&in)

			res, err := f.svc.Create(ctx, in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errorbank.Is(err, errorbank.KindValidation), "got %v", err)
			assert.Contains(t, errorbank.From(err).Details(), tc.field)
		})
	}

	orders, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestService_CreateZeroQuantity(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), newInput(3, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Order.DesiredQuantity)
}

func TestService_CreateUnknownReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, newInput(999, 1, 10))
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindReferenceNotFound))
	assert.Equal(t, int64(999), errorbank.From(err).Details()["customer_id"])

	_, err = f.svc.Create(ctx, newInput(1, 42, 10))
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindReferenceNotFound))

	orders, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.types())
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 2, 55000))
	require.NoError(t, err)
	id := created.Order.ID

	in := order.UpdateInput{Input: newInput(2, 3, 55000), ActualQuantity: qty(40000)}
	in.ExternalRef = ""
	res, err := f.svc.Update(ctx, id, in)
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "Work order updated successfully.", res.Message)
	assert.Equal(t, entity.StatusOpen, o.Status)
	assert.Nil(t, o.ClosedAt)
	assert.Nil(t, o.ExternalRef)
	require.NotNil(t, o.ActualQuantity)
	assert.Equal(t, int64(40000), *o.ActualQuantity)
	assert.True(t, o.UnderQuantity())
	assert.Equal(t, "Harbor Fundraising Group", o.CustomerName())
	assert.Equal(t, "Travel Rewards Members", o.DatabaseName())
	assert.True(t, o.UpdatedAt.After(created.Order.UpdatedAt))
	assert.True(t, o.CreatedAt.Equal(created.Order.CreatedAt))

	assert.Equal(t, []string{order.EventCreated, order.EventUpdated}, f.publisher.types())
}

func TestService_UpdateKeepsStatusAndClosedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 1, 100))
	require.NoError(t, err)
	id := created.Order.ID
	for _, s := range []string{"in_progress", "fulfilled", "closed"} {
		_, err := f.svc.ChangeStatus(ctx, id, s)
		require.NoError(t, err)
	}
	closed, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)

	res, err := f.svc.Update(ctx, id, order.UpdateInput{Input: newInput(1, 1, 100), ActualQuantity: qty(100)})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusClosed, res.Order.Status)
	require.NotNil(t, res.Order.ClosedAt)
	assert.True(t, res.Order.ClosedAt.Equal(*closed.ClosedAt))
	assert.False(t, res.Order.UnderQuantity())
}

func TestService_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 1, 100))
	require.NoError(t, err)

	t.Run("should return not found for a missing order", func(t *testing.T) {
		_, err := f.svc.Update(ctx, 9999, order.UpdateInput{Input: newInput(1, 1, 100)})
		assert.True(t, errorbank.Is(err, errorbank.KindNotFound), "got %v", err)
	})

	t.Run("should reject a negative actual quantity", func(t *testing.T) {
		_, err := f.svc.Update(ctx, created.Order.ID, order.UpdateInput{Input: newInput(1, 1, 100), ActualQuantity: qty(-5)})
		assert.True(t, errorbank.Is(err, errorbank.KindValidation))
	})

	t.Run("should reject an unknown database", func(t *testing.T) {
		_, err := f.svc.Update(ctx, created.Order.ID, order.UpdateInput{Input: newInput(1, 77, 100)})
		assert.True(t, errorbank.Is(err, errorbank.KindReferenceNotFound))

		stored, err := f.svc.Get(ctx, created.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.DatabaseID)
	})
}

func TestService_ChangeStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 2, 55000))
	require.NoError(t, err)
	id := created.Order.ID

	res, err := f.svc.ChangeStatus(ctx, id, "in_progress")
	require.NoError(t, err)
	assert.Equal(t, "Status changed to: In Progress", res.Message)
	assert.Nil(t, res.Order.ClosedAt)

	res, err = f.svc.ChangeStatus(ctx, id, "fulfilled")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFulfilled, res.Order.Status)
	require.NotNil(t, res.Order.ClosedAt, "fulfilling stamps closed_at")
	assert.True(t, res.Order.ClosedAt.Equal(res.Order.UpdatedAt))

	res, err = f.svc.ChangeStatus(ctx, id, "closed")
	require.NoError(t, err)
	assert.Equal(t, "Status changed to: Closed/Billed", res.Message)
	require.NotNil(t, res.Order.ClosedAt)
	assert.True(t, res.Order.ClosedAt.Equal(res.Order.UpdatedAt))

	res, err = f.svc.ChangeStatus(ctx, id, "fulfilled")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFulfilled, res.Order.Status)
	require.NotNil(t, res.Order.ClosedAt, "reopening to fulfilled restamps closed_at")
	assert.True(t, res.Order.ClosedAt.Equal(res.Order.UpdatedAt))

	res, err = f.svc.ChangeStatus(ctx, id, "in_progress")
	require.NoError(t, err)
	assert.Nil(t, res.Order.ClosedAt)

	types := f.publisher.types()
	assert.Equal(t, order.EventCreated, types[0])
	assert.Len(t, types, 6)
	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, order.EventStatusChanged, last.Type)
	assert.Equal(t, entity.StatusFulfilled, last.PreviousStatus)
	assert.Equal(t, entity.StatusInProgress, last.Status)
}

func TestService_ChangeStatusRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 1, 100))
	require.NoError(t, err)
	id := created.Order.ID
	_, err = f.svc.ChangeStatus(ctx, id, "in_progress")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, id, "fulfilled")
	require.NoError(t, err)
	before, err := f.svc.Get(ctx, id)
	require.NoError(t, err)

	for _, target := range []string{"open", "fulfilled", "archived", ""} {
		t.Run("should reject "+target, func(t *testing.T) {
			res, err := f.svc.ChangeStatus(ctx, id, target)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition), "got %v", err)
		})
	}

	after, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFulfilled, after.Status)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
	require.NotNil(t, before.ClosedAt)
	require.NotNil(t, after.ClosedAt)
	assert.True(t, after.ClosedAt.Equal(*before.ClosedAt))
}

func TestService_ChangeStatusMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ChangeStatus(context.Background(), 12345, "in_progress")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestService_UpdatedAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 1, 100))
	require.NoError(t, err)

	*f.clock = f.clock.Add(-time.Hour)
	res, err := f.svc.ChangeStatus(ctx, created.Order.ID, "in_progress")
	require.NoError(t, err)
	assert.False(t, res.Order.UpdatedAt.Before(created.Order.UpdatedAt))
}

func TestService_GetUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, newInput(1, 2, 100))
	require.NoError(t, err)
	id := created.Order.ID

	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Green Home Buyers", got.DatabaseName())

	_, err = f.store.Get(ctx, "orders:"+jsonInt(id))
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, id, "in_progress")
	require.NoError(t, err)

	got, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, got.Status, "cached copy must follow status changes")
}

func TestService_GetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 404)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Create(ctx, newInput(1, 1, 10))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, newInput(2, 2, 20))
	require.NoError(t, err)
	third, err := f.svc.Create(ctx, newInput(3, 3, 30))
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, second.Order.ID, "in_progress")
	require.NoError(t, err)

	t.Run("should list newest first", func(t *testing.T) {
		orders, err := f.svc.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []int64{third.Order.ID, second.Order.ID, first.Order.ID}, ids(orders))
		assert.Equal(t, "Northwind Catalogs", orders[0].CustomerName())
	})

	t.Run("should filter by status", func(t *testing.T) {
		orders, err := f.svc.List(ctx, "open")
		require.NoError(t, err)
		assert.Equal(t, []int64{third.Order.ID, first.Order.ID}, ids(orders))

		orders, err = f.svc.List(ctx, "in_progress")
		require.NoError(t, err)
		assert.Equal(t, []int64{second.Order.ID}, ids(orders))

		orders, err = f.svc.List(ctx, "closed")
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("should ignore unknown filters", func(t *testing.T) {
		orders, err := f.svc.List(ctx, "archived")
		require.NoError(t, err)
		assert.Len(t, orders, 3)
	})
}

func ids(orders []entity.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestService_PublishDoesNotStallWithoutConsumer(t *testing.T) {
	ctx := context.Background()
	conns := testutil.NewDB(t)
	cfg := testutil.Config()
	cfg.Messaging.Enabled = true
	cfg.Orders.QueryTimeout = 2 * time.Second
	logger := testutil.Logger(t)
	store := cache.NewMemoryStore(time.Minute)

	svc := order.NewService(order.Params{
		Repository: orderrepo.NewRepository(conns),
		References: reference.NewService(reference.Params{
			Repository: refrepo.NewRepository(conns),
			Cache:      store,
			Config:     cfg,
			Logger:     logger,
		}),
		Cache:     store,
		Config:    cfg,
		Logger:    logger,
		Publisher: messaging.NewMemoryClient(cfg.Messaging.Kafka.Topic, 1, logger),
	})

	for i := 0; i < 3; i++ {
		start := time.Now()
		res, err := svc.Create(ctx, newInput(1, 1, 100))
		require.NoError(t, err, "create %d", i)
		assert.NotZero(t, res.Order.ID)
		assert.Less(t, time.Since(start), time.Second, "create %d waited on the event buffer", i)
	}

	orders, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}
