// Package backlog periodically reports how many work orders sit in each
// lifecycle status.
package backlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/config"
	"github.com/Additional-Code/workorders/internal/entity"
	orderrepo "github.com/Additional-Code/workorders/internal/repository/order"
)

var backlogMeter = otel.Meter("github.com/Additional-Code/workorders/worker/backlog")

const reportTimeout = 30 * time.Second

// Counter counts orders per status.
type Counter interface {
	CountByStatus(ctx context.Context) (map[entity.Status]int64, error)
}

// Reporter records the per-status order backlog on a cron schedule.
type Reporter struct {
	counter  Counter
	schedule string
	logger   *zap.Logger
	gauge    metric.Int64Gauge
	cron     *cron.Cron
}

// Module runs the reporter alongside the worker engine.
var Module = fx.Options(
	fx.Provide(func(repo *orderrepo.Repository, cfg config.Config, logger *zap.Logger) *Reporter {
		return New(repo, cfg.Messaging.Workers.BacklogSchedule, logger)
	}),
	fx.Invoke(func(lc fx.Lifecycle, r *Reporter) {
		lc.Append(Hook(r))
	}),
)

// Hook ties the reporter's schedule to an Fx lifecycle.
func Hook(r *Reporter) fx.Hook {
	return fx.Hook{
		OnStart: r.start,
		OnStop:  r.stop,
	}
}

// New builds a Reporter. A schedule of "off" disables it.
func New(counter Counter, schedule string, logger *zap.Logger) *Reporter {
	gauge, err := backlogMeter.Int64Gauge("workorders.orders",
		metric.WithDescription("Work orders currently in each status."),
	)
	if err != nil {
		logger.Warn("backlog gauge unavailable", zap.Error(err))
	}
	return &Reporter{
		counter:  counter,
		schedule: strings.TrimSpace(schedule),
		logger:   logger.Named("backlog"),
		gauge:    gauge,
	}
}

// Report counts orders once and records the result. Statuses without
// orders are reported as zero.
func (r *Reporter) Report(ctx context.Context) (map[entity.Status]int64, error) {
	counts, err := r.counter.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}

	fields := make([]zap.Field, 0, len(entity.Statuses))
	for _, status := range entity.Statuses {
		n := counts[status]
		if r.gauge != nil {
			r.gauge.Record(ctx, n, metric.WithAttributes(attribute.String("status", status.String())))
		}
		fields = append(fields, zap.Int64(status.String(), n))
	}
	r.logger.Info("order backlog", fields...)
	return counts, nil
}

func (r *Reporter) start(context.Context) error {
	if r.schedule == "" || r.schedule == "off" {
		r.logger.Info("backlog report disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, r.run); err != nil {
		return fmt.Errorf("schedule backlog report %q: %w", r.schedule, err)
	}
	r.cron = c
	c.Start()
	r.logger.Info("backlog report scheduled", zap.String("schedule", r.schedule))
	return nil
}

func (r *Reporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if _, err := r.Report(ctx); err != nil {
		r.logger.Error("backlog report failed", zap.Error(err))
	}
}

func (r *Reporter) stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
