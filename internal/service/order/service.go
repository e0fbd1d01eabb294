package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brandatta/comex-vicomx/internal/clock"
	"github.com/brandatta/comex-vicomx/internal/config"
	"github.com/brandatta/comex-vicomx/internal/dto"
	"github.com/brandatta/comex-vicomx/internal/entity"
	"github.com/brandatta/comex-vicomx/internal/ingest"
	"github.com/brandatta/comex-vicomx/internal/messaging"
	articlerepo "github.com/brandatta/comex-vicomx/internal/repository/article"
	repo "github.com/brandatta/comex-vicomx/internal/repository/order"
	statusrepo "github.com/brandatta/comex-vicomx/internal/repository/status"
	"github.com/brandatta/comex-vicomx/pkg/errorbank"
	"github.com/brandatta/comex-vicomx/pkg/numparse"
)

var serviceTracer = otel.Tracer("github.com/brandatta/comex-vicomx/service/order")

// Service implements the spreadsheet pipeline (preview and generation) and
// the line editor for persisted orders.
type Service struct {
	orders    *repo.Repository
	articles  *articlerepo.Repository
	statuses  *statusrepo.Repository
	clock     *clock.Clock
	logger    *zap.Logger
	publisher messaging.Client
	comex     config.Comex
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *repo.Repository
	Articles  *articlerepo.Repository
	Statuses  *statusrepo.Repository
	Clock     *clock.Clock
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		articles:  p.Articles,
		statuses:  p.Statuses,
		clock:     p.Clock,
		logger:    p.Logger,
		publisher: p.Publisher,
		comex:     p.Config.Comex,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// PreviewResult is the outcome of validating and merging a spreadsheet.
type PreviewResult struct {
	Merged  []dto.MergedRow
	Sin     []dto.MergedRow
	Resumen []dto.SummaryRow
}

// GenerateResult reports the orders created by a generation request.
type GenerateResult struct {
	Message string
	Created []dto.CreatedOrder
}

// Preview parses a spreadsheet, joins it against the supplier lookup and
// aggregates a per-supplier summary. Unresolved rows are surfaced, not
// rejected; only generation treats them as a hard blocker.
func (s *Service) Preview(ctx context.Context, file io.Reader) (*PreviewResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Preview")
	defer span.End()

	rows, err := ingest.Parse(file)
	if err != nil {
		return nil, err
	}

	merged, err := s.merge(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return nil, errorbank.Internal("no se pudo consultar articulos_comex", errorbank.WithCause(err))
	}

	sin := make([]dto.MergedRow, 0)
	for _, m := range merged {
		if m.Proveedor == nil {
			sin = append(sin, m)
		}
	}

	return &PreviewResult{
		Merged:  merged,
		Sin:     sin,
		Resumen: summarize(merged),
	}, nil
}

// Generate runs the whole pipeline and persists grouped orders. The write
// is all-or-nothing: unresolved item codes block generation before the
// transaction starts, and any failure inside it rolls everything back.
func (s *Service) Generate(ctx context.Context, file io.Reader, userEmail string) (*GenerateResult, error) {
	if userEmail == "" {
		return nil, errorbank.BadRequest("Ingresá el usuario antes de confirmar.")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Generate",
		trace.WithAttributes(attribute.String("actor", userEmail)))
	defer span.End()

	rows, err := ingest.Parse(file)
	if err != nil {
		return nil, err
	}

	merged, err := s.merge(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return nil, errorbank.Internal("no se pudo consultar articulos_comex", errorbank.WithCause(err))
	}

	var sin []dto.UnresolvedItem
	for _, m := range merged {
		if m.Proveedor == nil {
			sin = append(sin, dto.UnresolvedItem{CodAlfa: m.CodAlfa})
		}
	}
	if len(sin) > 0 {
		return nil, errorbank.BadRequest(
			"Ítems sin proveedor (falta mapeo en articulos_comex).",
			errorbank.WithDetail("sin", sin),
		)
	}

	groups := groupBySupplier(merged)

	created := make([]dto.CreatedOrder, 0, len(groups))
	err = s.orders.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		estadoInicial, err := s.statuses.DefinitionText(ctx, tx, s.comex.DefaultStatusID)
		if err != nil {
			if errors.Is(err, statusrepo.ErrDefinitionNotFound) {
				return errorbank.Internal(fmt.Sprintf("No existe comex_estados.id=%d.", s.comex.DefaultStatusID))
			}
			return err
		}

		tsNow := s.clock.SQL()
		created = created[:0]

		for _, g := range groups {
			numero, err := s.allocateNumero(ctx, tx, g.cliente)
			if err != nil {
				return err
			}

			for i, m := range g.rows {
				line := &entity.OrderLine{
					Numero:    numero,
					Cliente:   strconv.FormatInt(g.cliente, 10),
					CodAlfa:   m.CodAlfa,
					Cantidad:  m.Cantidad,
					Precio:    m.Precio,
					RS:        g.razon,
					Item:      i + 1,
					App:       entity.SourceTag,
					ProcSAP:   0,
					SAPReady:  "N",
					UserEmail: userEmail,
					TS:        tsNow,
				}
				if err := s.orders.UpsertLine(ctx, tx, line); err != nil {
					return err
				}
			}

			if err := s.statuses.Append(ctx, tx, &entity.StatusEntry{
				Pedido: numero,
				Estado: estadoInicial,
				TS:     tsNow,
				Usr:    userEmail,
			}); err != nil {
				return err
			}

			created = append(created, dto.CreatedOrder{
				Pedido:      numero,
				Proveedor:   g.cliente,
				RazonSocial: g.razon,
				Estado:      estadoInicial,
			})
		}
		return nil
	})
	if err != nil {
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	for _, c := range created {
		s.publishOrderCreated(ctx, c)
	}

	s.logger.Info("pedidos generados",
		zap.Int("orders", len(created)),
		zap.String("actor", userEmail),
	)

	return &GenerateResult{
		Message: "Pedidos Generados y registrados en vicomx",
		Created: created,
	}, nil
}

// Lines loads the persisted lines of an order for the editor grid.
func (s *Service) Lines(ctx context.Context, numero string) ([]dto.LineRow, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Lines",
		trace.WithAttributes(attribute.String("pedido", numero)))
	defer span.End()

	lines, err := s.orders.LinesByNumero(ctx, numero)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	out := make([]dto.LineRow, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.LineRow{
			Item:      l.Item,
			CodAlfa:   l.CodAlfa,
			Cantidad:  l.Cantidad,
			Precio:    l.Precio,
			RS:        l.RS,
			TS:        l.TS,
			UserEmail: l.UserEmail,
			SAPReady:  l.SAPReady,
			ProcSAP:   l.ProcSAP,
		})
	}
	return out, nil
}

// SaveLines validates every edit and applies them in one transaction; an
// invalid quantity or price anywhere rejects the whole batch before any
// write happens.
func (s *Service) SaveLines(ctx context.Context, numero string, edits []dto.LineEdit) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SaveLines", trace.WithAttributes(
		attribute.String("pedido", numero),
		attribute.Int("lines", len(edits)),
	))
	defer span.End()

	if len(edits) == 0 {
		return errorbank.BadRequest("Payload inválido")
	}

	type validated struct {
		item     int
		cantidad float64
		precio   float64
	}
	parsed := make([]validated, 0, len(edits))
	for _, e := range edits {
		qty, qtyOK := numparse.Value(e.Cantidad)
		price, priceOK := numparse.Value(e.Precio)
		if e.Item < 1 || !qtyOK || !priceOK || qty <= 0 || price <= 0 {
			return errorbank.BadRequest("Payload inválido",
				errorbank.WithDetail("item", e.Item))
		}
		parsed = append(parsed, validated{item: e.Item, cantidad: qty, precio: price})
	}

	err := s.orders.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tsNow := s.clock.SQL()
		for _, v := range parsed {
			if _, err := s.orders.UpdateLine(ctx, tx, numero, v.item, v.cantidad, v.precio, tsNow); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		return errorbank.Internal("DB error", errorbank.WithCause(err))
	}
	return nil
}

// Index returns up to limit derived order summaries, most recent first.
func (s *Service) Index(ctx context.Context, limit int) ([]dto.IndexRow, error) {
	if limit <= 0 {
		limit = s.comex.IndexDefaultLimit
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Index",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	rows, err := s.orders.Index(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	out := make([]dto.IndexRow, 0, len(rows))
	for _, r := range rows {
		row := dto.IndexRow{
			Pedido:    r.Pedido,
			Proveedor: r.Proveedor,
			RS:        r.RS,
			LastTS:    r.LastTS,
		}
		if r.EstadoTexto.Valid {
			estado := r.EstadoTexto.String
			row.EstadoTexto = &estado
		}
		out = append(out, row)
	}
	return out, nil
}

// merge attaches supplier data to every ingested row; rows whose code has
// no article row keep nil supplier fields.
func (s *Service) merge(ctx context.Context, rows []ingest.Row) ([]dto.MergedRow, error) {
	arts, err := s.articles.LoadByCodes(ctx, ingest.Codes(rows))
	if err != nil {
		return nil, err
	}

	merged := make([]dto.MergedRow, 0, len(rows))
	for _, r := range rows {
		m := dto.MergedRow{
			CodAlfa:  r.CodAlfa,
			Precio:   r.Precio,
			Cantidad: r.Cantidad,
		}
		if a, ok := arts[r.CodAlfa]; ok {
			prov := a.Proveedor
			nombre := a.Nombre
			m.Proveedor = &prov
			m.Nombre = &nombre
		}
		merged = append(merged, m)
	}
	return merged, nil
}

// allocateNumero builds an order number and re-rolls the random suffix on
// collision. Exhausting the retries aborts the transaction.
func (s *Service) allocateNumero(ctx context.Context, tx bun.Tx, cliente int64) (string, error) {
	for attempt := 0; attempt < s.comex.NumberRetries; attempt++ {
		numero := fmt.Sprintf("%s-P%d-%s-%s",
			s.comex.OrderPrefix, cliente, s.clock.Compact(), uuid.NewString()[:4])
		exists, err := s.orders.NumberExists(ctx, tx, numero)
		if err != nil {
			return "", err
		}
		if !exists {
			return numero, nil
		}
		s.logger.Warn("numero de pedido en colisión, reintentando",
			zap.String("numero", numero), zap.Int("attempt", attempt+1))
	}
	return "", errorbank.Internal("no se pudo asignar un número de pedido único")
}

type supplierGroup struct {
	cliente int64
	razon   string
	rows    []dto.MergedRow
}

// groupBySupplier partitions resolved rows per supplier, preserving the
// original row order inside each group.
func groupBySupplier(merged []dto.MergedRow) []supplierGroup {
	index := make(map[string]int)
	var groups []supplierGroup
	for _, m := range merged {
		key := fmt.Sprintf("%d|%s", *m.Proveedor, deref(m.Nombre))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, supplierGroup{cliente: *m.Proveedor, razon: deref(m.Nombre)})
		}
		groups[i].rows = append(groups[i].rows, m)
	}
	return groups
}

// summarize builds one row per (supplier, name) pair, unresolved rows
// forming a distinct nil-keyed group that sorts first.
func summarize(merged []dto.MergedRow) []dto.SummaryRow {
	type key struct {
		hasProv bool
		prov    int64
		nombre  string
	}
	acc := make(map[key]*dto.SummaryRow)
	var order []key
	for _, m := range merged {
		k := key{}
		if m.Proveedor != nil {
			k = key{hasProv: true, prov: *m.Proveedor, nombre: deref(m.Nombre)}
		}
		row, ok := acc[k]
		if !ok {
			row = &dto.SummaryRow{Proveedor: m.Proveedor, RazonSocial: m.Nombre}
			acc[k] = row
			order = append(order, k)
		}
		row.Items++
		row.CantidadTotal += m.Cantidad
		row.STUSD += m.Cantidad * m.Precio
	}

	out := make([]dto.SummaryRow, 0, len(order))
	for _, k := range order {
		out = append(out, *acc[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Proveedor, out[j].Proveedor
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return *a < *b
		}
	})
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Service) publishOrderCreated(ctx context.Context, c dto.CreatedOrder) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		Pedido:      c.Pedido,
		Proveedor:   c.Proveedor,
		RazonSocial: c.RazonSocial,
		Estado:      c.Estado,
		TS:          s.clock.SQL(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(c.Pedido), payload); err != nil {
		s.logger.Error("publish order created", zap.Error(err))
	}
}

// OrderCreatedEvent is emitted once per generated order, keyed by order
// number, for downstream consumers such as the SAP export pickup.
type OrderCreatedEvent struct {
	Pedido      string `json:"pedido"`
	Proveedor   int64  `json:"proveedor"`
	RazonSocial string `json:"razon_social"`
	Estado      string `json:"estado"`
	TS          string `json:"ts"`
}
