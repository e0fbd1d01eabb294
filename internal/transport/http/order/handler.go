package order

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandatta/comex-vicomx/internal/dto"
	"github.com/brandatta/comex-vicomx/internal/presentation/http/response"
	service "github.com/brandatta/comex-vicomx/internal/service/order"
	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brandatta/comex-vicomx/transport/http/order")

// Handler exposes the spreadsheet pipeline and line editor over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.POST("/preview", h.preview)
	api.POST("/generate", h.generate)

	pedidos := api.Group("/pedidos")
	pedidos.GET("/index", h.index)
	pedidos.GET("/:pedido/lines", h.lines)
	pedidos.PUT("/:pedido/lines", h.saveLines)
}

func (h *Handler) preview(c echo.Context) error {
	b := response.New(c)

	file, err := openUpload(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	defer file.Close()

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.preview")
	defer span.End()

	result, err := h.svc.Preview(ctx, file)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{
		"ok":      true,
		"merged":  result.Merged,
		"sin":     result.Sin,
		"resumen": result.Resumen,
	}).Build()
}

func (h *Handler) generate(c echo.Context) error {
	b := response.New(c)

	userEmail := strings.TrimSpace(c.FormValue("user_email"))
	if userEmail == "" {
		return b.WithError(errorbank.BadRequest("Ingresá el usuario antes de confirmar.")).Build()
	}

	file, err := openUpload(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	defer file.Close()

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.generate",
		trace.WithAttributes(attribute.String("actor", userEmail)))
	defer span.End()

	result, err := h.svc.Generate(ctx, file, userEmail)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{
		"ok":      true,
		"message": result.Message,
		"created": result.Created,
	}).Build()
}

func (h *Handler) index(c echo.Context) error {
	b := response.New(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("limit inválido")).Build()
		}
		limit = n
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.index")
	defer span.End()

	rows, err := h.svc.Index(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{"index": rows}).Build()
}

func (h *Handler) lines(c echo.Context) error {
	b := response.New(c)
	pedido := c.Param("pedido")

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.lines",
		trace.WithAttributes(attribute.String("pedido", pedido)))
	defer span.End()

	lines, err := h.svc.Lines(ctx, pedido)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{"lines": lines}).Build()
}

func (h *Handler) saveLines(c echo.Context) error {
	b := response.New(c)
	pedido := c.Param("pedido")

	var payload struct {
		Lines []dto.LineEdit `json:"lines"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("Payload inválido", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.saveLines", trace.WithAttributes(
		attribute.String("pedido", pedido),
		attribute.Int("lines", len(payload.Lines)),
	))
	defer span.End()

	if err := h.svc.SaveLines(ctx, pedido, payload.Lines); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(map[string]any{"ok": true}).Build()
}

// openUpload extracts the spreadsheet from the multipart form.
func openUpload(c echo.Context) (multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errorbank.BadRequest("Falta archivo .xlsx")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errorbank.BadRequest("Falta archivo .xlsx", errorbank.WithCause(err))
	}
	return f, nil
}
