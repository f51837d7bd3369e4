package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/workorders/internal/messaging"
	"github.com/Additional-Code/workorders/internal/testutil"
)

func TestMemoryClient(t *testing.T) {
	client := messaging.NewMemoryClient("workorders.events", 4, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"type":"order.created"}`), map[string]string{"event_type": "order.created"}))
	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"type":"order.updated"}`), nil))

	var got []messaging.Message
	err := client.Consume(ctx, func(_ context.Context, msg messaging.Message) error {
		got = append(got, msg)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, got, 2)
	assert.Equal(t, "workorders.events", got[0].Topic)
	assert.Equal(t, []byte("order-1"), got[0].Key)
	assert.Equal(t, "order.created", got[0].Headers["event_type"])
	assert.Less(t, got[0].Offset, got[1].Offset)
}

func TestMemoryClient_PublishRespectsContext(t *testing.T) {
	client := messaging.NewMemoryClient("workorders.events", 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, client.Publish(ctx, nil, []byte("x"), nil), context.Canceled)
}

func TestMemoryClient_PublishDropsWhenFull(t *testing.T) {
	client := messaging.NewMemoryClient("workorders.events", 2, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, client.Publish(ctx, nil, []byte("a"), nil))
	require.NoError(t, client.Publish(ctx, nil, []byte("b"), nil))

	start := time.Now()
	err := client.Publish(ctx, nil, []byte("c"), nil)
	assert.ErrorIs(t, err, messaging.ErrBufferFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish must not wait for a consumer")
}

func TestMemoryClient_ConsumeLogsHandlerFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	client := messaging.NewMemoryClient("workorders.events", 2, zap.New(core))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Publish(ctx, []byte("order-9"), []byte("{"), nil))
	err := client.Consume(ctx, func(context.Context, messaging.Message) error {
		cancel()
		return errors.New("decode order event")
	})
	assert.ErrorIs(t, err, context.Canceled)

	entries := logs.FilterMessage("memory message handler failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "order-9", entries[0].ContextMap()["key"])
}

func TestNewClient(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	t.Run("should fall back to noop when disabled", func(t *testing.T) {
		cfg := testutil.Config()
		client, err := messaging.NewClient(lc, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "workorders.events", client.Topic())
		assert.NoError(t, client.Publish(context.Background(), nil, []byte("x"), nil))
	})

	t.Run("should build the memory driver", func(t *testing.T) {
		cfg := testutil.Config()
		cfg.Messaging.Enabled = true
		cfg.Messaging.Driver = "memory"
		client, err := messaging.NewClient(lc, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &messaging.MemoryClient{}, client)
	})

	t.Run("should reject unknown drivers", func(t *testing.T) {
		cfg := testutil.Config()
		cfg.Messaging.Enabled = true
		cfg.Messaging.Driver = "nats"
		_, err := messaging.NewClient(lc, cfg, zap.NewNop())
		assert.Error(t, err)
	})
}
