package order

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brandatta/comex-vicomx/repository/order")

// IndexRow is one derived order summary produced by the index query.
type IndexRow struct {
	Pedido      string         `bun:"pedido"`
	Proveedor   string         `bun:"proveedor"`
	RS          string         `bun:"rs"`
	LastTS      string         `bun:"last_ts"`
	EstadoTexto sql.NullString `bun:"estado_texto"`
}

// indexSQL groups persisted lines into one row per order and joins the
// current status entry. "Current" is the entry with the latest ts, ties
// broken by the highest id; the same rule the status ledger applies.
const indexSQL = `
SELECT
  p.NUMERO AS pedido,
  p.cliente AS proveedor,
  p.rs AS rs,
  p.last_ts AS last_ts,
  pm.estado AS estado_texto
FROM (
  SELECT NUMERO, MAX(CLIENTE) AS cliente, MAX(rs) AS rs, MAX(TS) AS last_ts
  FROM sap_comex
  WHERE NUMERO IS NOT NULL AND NUMERO <> ''
  GROUP BY NUMERO
) p
LEFT JOIN pedidos_meta_id pm
  ON pm.pedido = p.NUMERO
 AND pm.id = (
    SELECT pm2.id FROM pedidos_meta_id pm2
    WHERE pm2.pedido = p.NUMERO
    ORDER BY pm2.ts DESC, pm2.id DESC
    LIMIT 1)
ORDER BY p.last_ts DESC
LIMIT ?`

// Repository encapsulates read/write access for order lines.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// InTx runs fn inside a single transaction on the write connection. Any
// error rolls the whole transaction back.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// NumberExists probes for an already-allocated order number so the caller
// can re-roll the random suffix instead of silently colliding.
func (r *Repository) NumberExists(ctx context.Context, db bun.IDB, numero string) (bool, error) {
	return db.NewSelect().
		Model((*entity.OrderLine)(nil)).
		Where("NUMERO = ?", numero).
		Exists(ctx)
}

// UpsertLine inserts one order line; on a (NUMERO, ITEM) conflict the
// mutable columns are overwritten and the downstream-processing flags are
// reset so the exporter picks the line up again.
func (r *Repository) UpsertLine(ctx context.Context, db bun.IDB, line *entity.OrderLine) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpsertLine", trace.WithAttributes(
		attribute.String("pedido", line.Numero),
		attribute.Int("item", line.Item),
	))
	defer span.End()

	q := db.NewInsert().Model(line)
	if r.writer.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("CANTIDAD = VALUES(CANTIDAD)").
			Set("PRECIO = VALUES(PRECIO)").
			Set("rs = VALUES(rs)").
			Set("user_email = VALUES(user_email)").
			Set("TS = VALUES(TS)").
			Set("proc_sap = 0").
			Set("sap_ready = 'N'")
	} else {
		q = q.On("CONFLICT (NUMERO, ITEM) DO UPDATE").
			Set("CANTIDAD = EXCLUDED.CANTIDAD").
			Set("PRECIO = EXCLUDED.PRECIO").
			Set("rs = EXCLUDED.rs").
			Set("user_email = EXCLUDED.user_email").
			Set("TS = EXCLUDED.TS").
			Set("proc_sap = 0").
			Set("sap_ready = 'N'")
	}

	if _, err := q.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return err
	}
	return nil
}

// LinesByNumero loads all persisted lines of an order ordered by line number.
func (r *Repository) LinesByNumero(ctx context.Context, numero string) ([]entity.OrderLine, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.LinesByNumero",
		trace.WithAttributes(attribute.String("pedido", numero)))
	defer span.End()

	var lines []entity.OrderLine
	err := r.reader.NewSelect().
		Model(&lines).
		Where("NUMERO = ?", numero).
		Order("ITEM ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return lines, nil
}

// UpdateLine overwrites quantity, price and timestamp of one existing line.
// The returned count tells the caller whether the (NUMERO, ITEM) key matched.
func (r *Repository) UpdateLine(ctx context.Context, db bun.IDB, numero string, item int, cantidad, precio float64, ts string) (int64, error) {
	res, err := db.NewUpdate().
		Model((*entity.OrderLine)(nil)).
		Set("CANTIDAD = ?", cantidad).
		Set("PRECIO = ?", precio).
		Set("TS = ?", ts).
		Where("NUMERO = ?", numero).
		Where("ITEM = ?", item).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Index returns up to limit derived order summaries, most recent first.
func (r *Repository) Index(ctx context.Context, limit int) ([]IndexRow, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Index",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var rows []IndexRow
	if err := r.reader.NewRaw(indexSQL, limit).Scan(ctx, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index query failed")
		return nil, err
	}
	return rows, nil
}
