package status

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brandatta/comex-vicomx/repository/status")

// ErrNoStatus is returned when an order has no status entry yet.
var ErrNoStatus = errors.New("no status entry")

// ErrDefinitionNotFound is returned when a status id is missing from the
// comex_estados vocabulary.
var ErrDefinitionNotFound = errors.New("status definition not found")

// Repository owns the append-only status ledger and reads the status
// vocabulary. Ledger rows are never updated or deleted.
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

// Reader exposes the read connection for callers issuing one-off reads
// outside a transaction.
func (r *Repository) Reader() bun.IDB {
	return r.reader
}

// InTx runs fn inside a single transaction on the write connection.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// Definitions returns the status vocabulary ordered by id.
func (r *Repository) Definitions(ctx context.Context) ([]entity.StatusDefinition, error) {
	ctx, span := repoTracer.Start(ctx, "StatusRepository.Definitions")
	defer span.End()

	var defs []entity.StatusDefinition
	err := r.reader.NewSelect().Model(&defs).Order("id ASC").Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return defs, nil
}

// DefinitionText resolves a status id to its text, on whichever connection
// or transaction the caller is holding.
func (r *Repository) DefinitionText(ctx context.Context, db bun.IDB, id int) (string, error) {
	def := new(entity.StatusDefinition)
	err := db.NewSelect().Model(def).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrDefinitionNotFound
	}
	if err != nil {
		return "", err
	}
	return def.Estado, nil
}

// Append inserts one new ledger entry.
func (r *Repository) Append(ctx context.Context, db bun.IDB, e *entity.StatusEntry) error {
	ctx, span := repoTracer.Start(ctx, "StatusRepository.Append", trace.WithAttributes(
		attribute.String("pedido", e.Pedido),
		attribute.String("estado", e.Estado),
	))
	defer span.End()

	if _, err := db.NewInsert().Model(e).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Current returns the latest ledger entry for an order: maximum ts, ties
// broken by the highest id. ErrNoStatus when the order has no entry.
func (r *Repository) Current(ctx context.Context, db bun.IDB, pedido string) (*entity.StatusEntry, error) {
	e := new(entity.StatusEntry)
	err := db.NewSelect().
		Model(e).
		Where("pedido = ?", pedido).
		Order("ts DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoStatus
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// History returns the full audit trail of an order, chronological, ties
// broken by ascending id.
func (r *Repository) History(ctx context.Context, pedido string) ([]entity.StatusEntry, error) {
	ctx, span := repoTracer.Start(ctx, "StatusRepository.History",
		trace.WithAttributes(attribute.String("pedido", pedido)))
	defer span.End()

	var entries []entity.StatusEntry
	err := r.reader.NewSelect().
		Model(&entries).
		Where("pedido = ?", pedido).
		Order("ts ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}
