package backlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/workorders/internal/entity"
	orderrepo "github.com/Additional-Code/workorders/internal/repository/order"
	"github.com/Additional-Code/workorders/internal/testutil"
	"github.com/Additional-Code/workorders/internal/worker/backlog"
)

type fixedCounter map[entity.Status]int64

func (f fixedCounter) CountByStatus(context.Context) (map[entity.Status]int64, error) {
	return f, nil
}

func TestReporter_Report(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := backlog.New(fixedCounter{entity.StatusOpen: 4, entity.StatusClosed: 1}, "off", zap.New(core))

	counts, err := r.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[entity.StatusOpen])

	entries := logs.FilterMessage("order backlog").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 4, fields["open"])
	assert.EqualValues(t, 0, fields["in_progress"])
	assert.EqualValues(t, 1, fields["closed"])
}

func TestReporter_ReportFromDatabase(t *testing.T) {
	ctx := context.Background()
	repo := orderrepo.NewRepository(testutil.NewDB(t))
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &entity.Order{
		CustomerID:      1,
		DatabaseID:      1,
		ListDescription: "Lapsed subscribers",
		DesiredQuantity: 10,
		Status:          entity.StatusFulfilled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	counts, err := backlog.New(repo, "off", testutil.Logger(t)).Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[entity.Status]int64{entity.StatusFulfilled: 1}, counts)
}

func TestReporter_Lifecycle(t *testing.T) {
	t.Run("should reject a malformed schedule", func(t *testing.T) {
		lc := fxtest.NewLifecycle(t)
		r := backlog.New(fixedCounter{}, "every now and then", zap.NewNop())
		lc.Append(backlog.Hook(r))
		assert.Error(t, lc.Start(context.Background()))
	})

	t.Run("should start and stop on a valid schedule", func(t *testing.T) {
		lc := fxtest.NewLifecycle(t)
		r := backlog.New(fixedCounter{}, "@every 1h", zap.NewNop())
		lc.Append(backlog.Hook(r))
		lc.RequireStart()
		lc.RequireStop()
	})
}
