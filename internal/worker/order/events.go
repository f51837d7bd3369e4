package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/messaging"
	ordersvc "github.com/Additional-Code/workorders/internal/service/order"
	"github.com/Additional-Code/workorders/internal/worker"
)

var (
	workerTracer = otel.Tracer("github.com/Additional-Code/workorders/worker/order")
	workerMeter  = otel.Meter("github.com/Additional-Code/workorders/worker/order")
)

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler sets up a worker handler that writes an audit log line for
// every order event and counts them by type.
func NewEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	counter, err := workerMeter.Int64Counter("workorders.events_processed",
		metric.WithDescription("Order events consumed by the audit worker."),
	)
	if err != nil {
		logger.Warn("order event counter unavailable", zap.Error(err))
	}

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return fmt.Errorf("decode order event: %w", err)
		}
		span.SetAttributes(
			attribute.String("order.event", event.Type),
			attribute.Int64("order.id", event.OrderID),
		)

		fields := []zap.Field{
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.String("status", event.Status.String()),
			zap.Int64("customer_id", event.CustomerID),
			zap.Int64("database_id", event.DatabaseID),
			zap.Time("occurred_at", event.OccurredAt),
		}

		switch event.Type {
		case ordersvc.EventCreated:
			logger.Info("audit: work order opened", fields...)
		case ordersvc.EventUpdated:
			logger.Info("audit: work order edited", fields...)
		case ordersvc.EventStatusChanged:
			fields = append(fields, zap.String("previous_status", event.PreviousStatus.String()))
			if event.Status.Closing() {
				logger.Info("audit: work order closed for billing", fields...)
			} else {
				logger.Info("audit: work order status changed", fields...)
			}
		default:
			logger.Warn("ignoring unknown order event", fields...)
			return nil
		}

		if counter != nil {
			counter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("type", event.Type),
				attribute.String("status", event.Status.String()),
			))
		}
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
