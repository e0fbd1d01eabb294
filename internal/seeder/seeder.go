package seeder

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Estados seeds the status vocabulary if it is missing. Id 1 is the
// reserved default initial status.
func (s *Seeder) Estados(ctx context.Context) error {
	vocabulary := []entity.StatusDefinition{
		{ID: 1, Estado: "Generado"},
		{ID: 2, Estado: "Aprobado"},
		{ID: 3, Estado: "Embarcado"},
		{ID: 4, Estado: "Recibido"},
		{ID: 5, Estado: "Cerrado"},
	}

	for _, def := range vocabulary {
		row := def
		if err := s.insertIgnoring(ctx, &row, "(id)"); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded comex_estados", zap.Int("count", len(vocabulary)))
	}
	return nil
}

// Articulos seeds a few supplier mappings for local testing.
func (s *Seeder) Articulos(ctx context.Context) error {
	samples := []entity.Article{
		{CodAlfa: "ART-0001", Proveedor: 1001, Nombre: "Proveedor Uno SA"},
		{CodAlfa: "ART-0002", Proveedor: 1001, Nombre: "Proveedor Uno SA"},
		{CodAlfa: "ART-0003", Proveedor: 2002, Nombre: "Proveedor Dos SRL"},
	}

	for _, sample := range samples {
		row := sample
		if err := s.insertIgnoring(ctx, &row, "(cod_alfa)"); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded articulos_comex", zap.Int("count", len(samples)))
	}
	return nil
}

// insertIgnoring inserts a row and skips duplicates, per dialect.
func (s *Seeder) insertIgnoring(ctx context.Context, model any, conflictCols string) error {
	q := s.db.NewInsert().Model(model)
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.Ignore()
	} else {
		q = q.On("CONFLICT " + conflictCols + " DO NOTHING")
	}
	_, err := q.Exec(ctx)
	return err
}
