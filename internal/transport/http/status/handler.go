package status

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandatta/comex-vicomx/internal/presentation/http/response"
	service "github.com/brandatta/comex-vicomx/internal/service/status"
	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brandatta/comex-vicomx/transport/http/status")

// Handler exposes the status vocabulary and ledger over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a status Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.GET("/estados", h.estados)
	api.GET("/pedidos/:pedido/trazabilidad", h.trazabilidad)
	api.POST("/pedidos/:pedido/estado", h.recordEstado)
}

func (h *Handler) estados(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "estados.list")
	defer span.End()

	estados, err := h.svc.Estados(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{"estados": estados}).Build()
}

func (h *Handler) trazabilidad(c echo.Context) error {
	b := response.New(c)
	pedido := c.Param("pedido")

	ctx, span := httpTracer.Start(c.Request().Context(), "estados.trazabilidad",
		trace.WithAttributes(attribute.String("pedido", pedido)))
	defer span.End()

	rows, err := h.svc.History(ctx, pedido)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{"trazabilidad": rows}).Build()
}

func (h *Handler) recordEstado(c echo.Context) error {
	b := response.New(c)
	pedido := c.Param("pedido")

	var payload struct {
		EstadoTexto string `json:"estado_texto"`
		Usr         string `json:"usr"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("Payload inválido", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "estados.record", trace.WithAttributes(
		attribute.String("pedido", pedido),
		attribute.String("estado", payload.EstadoTexto),
	))
	defer span.End()

	result, err := h.svc.RecordTransition(ctx, pedido, payload.EstadoTexto, payload.Usr)
	if err != nil {
		return b.WithError(err).Build()
	}

	body := map[string]any{"ok": true}
	if result.Unchanged {
		body["unchanged"] = true
		body["message"] = "El pedido ya está en ese estado."
	}
	return b.WithData(body).Build()
}
