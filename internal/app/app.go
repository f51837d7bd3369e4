package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/cache"
	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/database"
	"github.com/Additional-Code/workorders/internal/logger"
	"github.com/Additional-Code/workorders/internal/messaging"
	"github.com/Additional-Code/workorders/internal/observability"
	repositoryorder "github.com/Additional-Code/workorders/internal/repository/order"
	repositoryreference "github.com/Additional-Code/workorders/internal/repository/reference"
	grpcserver "github.com/Additional-Code/workorders/internal/server/grpc"
	httpserver "github.com/Additional-Code/workorders/internal/server/http"
	serviceorder "github.com/Additional-Code/workorders/internal/service/order"
	servicereference "github.com/Additional-Code/workorders/internal/service/reference"
	transporthttp "github.com/Additional-Code/workorders/internal/transport/http"
	"github.com/Additional-Code/workorders/internal/worker"
	"github.com/Additional-Code/workorders/internal/worker/backlog"
	workerorder "github.com/Additional-Code/workorders/internal/worker/order"
)

// FxLogger routes Fx lifecycle events through the service logger.
var FxLogger = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryreference.Module,
	repositoryorder.Module,
	servicereference.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	backlog.Module,
)

// All runs the API and the worker engine in one process, which the memory
// messaging driver needs.
var All = fx.Options(
	HTTP,
	worker.Module,
	workerorder.Module,
	backlog.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
