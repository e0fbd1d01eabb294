package article

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brandatta/comex-vicomx/repository/article")

// Repository reads the supplier lookup table. The table belongs to another
// system, so only selects live here.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// LoadByCodes fetches the articles for exactly the given item codes and
// returns them keyed by trimmed code. Codes without a row are simply
// absent from the map.
func (r *Repository) LoadByCodes(ctx context.Context, cods []string) (map[string]entity.Article, error) {
	out := make(map[string]entity.Article, len(cods))
	if len(cods) == 0 {
		return out, nil
	}

	ctx, span := repoTracer.Start(ctx, "ArticleRepository.LoadByCodes",
		trace.WithAttributes(attribute.Int("articles.requested", len(cods))))
	defer span.End()

	var arts []entity.Article
	err := r.reader.NewSelect().
		Model(&arts).
		Where("cod_alfa IN (?)", bun.In(cods)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	for _, a := range arts {
		out[strings.TrimSpace(a.CodAlfa)] = a
	}
	return out, nil
}
