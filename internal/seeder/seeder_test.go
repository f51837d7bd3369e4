package seeder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/workorders/internal/entity"
	"github.com/Additional-Code/workorders/internal/seeder"
	"github.com/Additional-Code/workorders/internal/testutil"
)

func TestSeeder(t *testing.T) {
	ctx := context.Background()
	conns := testutil.NewDB(t)
	seed := seeder.New(conns, testutil.Logger(t))

	require.NoError(t, seed.Reference(ctx), "reference seeding must be repeatable")

	customers, err := conns.Reader.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, customers)

	require.NoError(t, seed.Orders(ctx))
	require.NoError(t, seed.Orders(ctx))

	var orders []entity.Order
	require.NoError(t, conns.Reader.NewSelect().Model(&orders).Order("id").Scan(ctx))
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, entity.StatusOpen, o.Status)
		assert.Nil(t, o.ClosedAt)
		assert.Nil(t, o.ActualQuantity)
	}
	require.NotNil(t, orders[0].ExternalRef)
	assert.Equal(t, "SJ-04771", *orders[0].ExternalRef)
}
