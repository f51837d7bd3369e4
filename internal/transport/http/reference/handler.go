package reference

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/dto"
	"github.com/Additional-Code/workorders/internal/entity"
	"github.com/Additional-Code/workorders/internal/presentation/http/response"
	service "github.com/Additional-Code/workorders/internal/service/reference"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/workorders/transport/http/reference")

// Module wires HTTP reference data handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves the choices a client needs to build an order form.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a reference Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/customers", h.customers)
	e.GET("/databases", h.databases)
	e.GET("/statuses", h.statuses)
}

func (h *Handler) customers(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "reference.customers")
	defer span.End()

	customers, err := h.svc.ListCustomers(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCustomers(customers)).Build()
}

func (h *Handler) databases(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "reference.databases")
	defer span.End()

	databases, err := h.svc.ListDatabases(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromDatabases(databases)).Build()
}

func (h *Handler) statuses(c echo.Context) error {
	return response.New(c).WithData(dto.FromStatuses(entity.Statuses)).Build()
}
