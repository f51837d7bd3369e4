// Package testutil builds migrated, seeded in-memory databases for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/database"
	"github.com/Additional-Code/workorders/internal/migration"
	"github.com/Additional-Code/workorders/internal/seeder"
)

// Config returns a configuration pointing at an in-memory SQLite database with
// cache and messaging disabled.
func Config() config.Config {
	return config.Config{
		HTTP:      config.HTTP{Host: "127.0.0.1", Port: 8080},
		GRPC:      config.GRPC{Host: "127.0.0.1", Port: 9090},
		Cache:     config.Cache{Driver: "noop", DefaultTTL: time.Minute},
		Messaging: config.Messaging{Driver: "noop", Kafka: config.Kafka{Topic: "workorders.events"}},
		Database: config.Database{
			Driver:    "sqlite",
			WriterDSN: ":memory:",
			ReaderDSN: ":memory:",
		},
		Orders: config.Orders{ReferenceTTL: time.Minute, QueryTimeout: 5 * time.Second},
		Observability: config.Observability{
			ServiceName: "workorders-test",
			Environment: "test",
			LogLevel:    "debug",
			LogEncoding: "console",
		},
	}
}

// Logger returns a logger that writes through t.Log.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// NewDB opens a migrated in-memory database holding the three seeded
// customers and databases. The connections close when the test ends.
func NewDB(t testing.TB) *database.Connections {
	t.Helper()

	cfg := Config()
	logger := Logger(t)
	lc := fxtest.NewLifecycle(t)

	conns, err := database.New(lc, cfg, logger)
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })

	mig, err := migration.New(cfg, conns, logger)
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	require.NoError(t, seeder.New(conns, logger).Reference(context.Background()))

	return conns
}
