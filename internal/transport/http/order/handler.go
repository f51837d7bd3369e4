package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/dto"
	"github.com/Additional-Code/workorders/internal/presentation/http/response"
	service "github.com/Additional-Code/workorders/internal/service/order"
	"github.com/Additional-Code/workorders/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/workorders/transport/http/order")

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.POST("/:id/status", h.changeStatus)
}

type statusPayload struct {
	Status string `json:"status"`
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	filter := c.QueryParam("status")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(attribute.String("order.status_filter", filter)))
	defer span.End()

	orders, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrders(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload service.Input
	if err := c.Bind(&payload); err != nil {
		return b.WithError(bindError(err)).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("order.customer_id", payload.CustomerID),
		attribute.Int64("order.database_id", payload.DatabaseID),
	))
	defer span.End()

	res, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).
		WithData(dto.FromOrder(res.Order)).
		WithMessage(res.Message).
		Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload service.UpdateInput
	if err := c.Bind(&payload); err != nil {
		return b.WithError(bindError(err)).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := h.svc.Update(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(res.Order)).WithMessage(res.Message).Build()
}

func (h *Handler) changeStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload statusPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(bindError(err)).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.changeStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", payload.Status),
	))
	defer span.End()

	res, err := h.svc.ChangeStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(res.Order)).WithMessage(res.Message).Build()
}

// bindError reports a field of the wrong JSON type as a validation failure
// on that field. Anything else is a malformed request.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return errorbank.Validation("invalid order input: "+typeErr.Field,
			errorbank.WithDetail(typeErr.Field, "must be of type "+typeErr.Type.String()),
			errorbank.WithCause(err),
		)
	}
	return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}
