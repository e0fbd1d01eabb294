package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brandatta/comex-vicomx/internal/cache"
	"github.com/brandatta/comex-vicomx/internal/clock"
	"github.com/brandatta/comex-vicomx/internal/config"
	"github.com/brandatta/comex-vicomx/internal/dto"
	"github.com/brandatta/comex-vicomx/internal/entity"
	repo "github.com/brandatta/comex-vicomx/internal/repository/status"
	"github.com/brandatta/comex-vicomx/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brandatta/comex-vicomx/service/status")

const estadosCacheKey = "comex:estados"

// Service exposes the status vocabulary and the append-only status ledger.
type Service struct {
	repo     *repo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	clock    *clock.Clock
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Clock      *clock.Clock
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		clock:    p.Clock,
		logger:   p.Logger,
	}
}

// TransitionResult reports the outcome of a recorded transition. Unchanged
// marks the idempotent no-op case, which is informational rather than an
// error.
type TransitionResult struct {
	Unchanged bool
	Estado    string
}

// Estados returns the status vocabulary ordered by id. The list changes
// rarely, so reads go through the cache; an empty list is a valid response
// the caller treats as a configuration problem.
func (s *Service) Estados(ctx context.Context) ([]dto.Estado, error) {
	ctx, span := serviceTracer.Start(ctx, "StatusService.Estados")
	defer span.End()

	if cached, err := s.estadosFromCache(ctx); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("estados cache read failed", zap.Error(err))
	}

	defs, err := s.repo.Definitions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	estados := make([]dto.Estado, 0, len(defs))
	for _, d := range defs {
		estados = append(estados, dto.Estado{ID: d.ID, Estado: d.Estado})
	}

	if err := s.storeEstados(ctx, estados); err != nil {
		s.logger.Warn("estados cache write failed", zap.Error(err))
	}
	return estados, nil
}

// Current resolves the current status text of an order, or "no status"
// when it has no ledger entry.
func (s *Service) Current(ctx context.Context, pedido string) (string, error) {
	ctx, span := serviceTracer.Start(ctx, "StatusService.Current",
		trace.WithAttributes(attribute.String("pedido", pedido)))
	defer span.End()

	e, err := s.repo.Current(ctx, s.repo.Reader(), pedido)
	if errors.Is(err, repo.ErrNoStatus) {
		return "", nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return "", errorbank.Internal("DB error", errorbank.WithCause(err))
	}
	return e.Estado, nil
}

// RecordTransition appends a status change for an order. Recording the
// current status again is a no-op reported as unchanged; everything else
// inserts a new ledger entry inside its own short transaction.
func (s *Service) RecordTransition(ctx context.Context, pedido, estadoTexto, usr string) (*TransitionResult, error) {
	if usr == "" {
		return nil, errorbank.BadRequest("actor required")
	}
	if estadoTexto == "" {
		return nil, errorbank.BadRequest("estado_texto required")
	}

	ctx, span := serviceTracer.Start(ctx, "StatusService.RecordTransition", trace.WithAttributes(
		attribute.String("pedido", pedido),
		attribute.String("estado", estadoTexto),
	))
	defer span.End()

	var result TransitionResult
	err := s.repo.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.repo.Current(ctx, tx, pedido)
		if err != nil && !errors.Is(err, repo.ErrNoStatus) {
			return err
		}
		if current != nil && current.Estado == estadoTexto {
			result = TransitionResult{Unchanged: true, Estado: estadoTexto}
			return nil
		}
		if err := s.repo.Append(ctx, tx, &entity.StatusEntry{
			Pedido: pedido,
			Estado: estadoTexto,
			TS:     s.clock.SQL(),
			Usr:    usr,
		}); err != nil {
			return err
		}
		result = TransitionResult{Estado: estadoTexto}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	if result.Unchanged {
		s.logger.Info("estado sin cambios", zap.String("pedido", pedido), zap.String("estado", estadoTexto))
	} else {
		s.logger.Info("estado registrado",
			zap.String("pedido", pedido),
			zap.String("estado", estadoTexto),
			zap.String("actor", usr),
		)
	}
	return &result, nil
}

// History returns the full audit trail of an order in chronological order.
func (s *Service) History(ctx context.Context, pedido string) ([]dto.StatusRow, error) {
	ctx, span := serviceTracer.Start(ctx, "StatusService.History",
		trace.WithAttributes(attribute.String("pedido", pedido)))
	defer span.End()

	entries, err := s.repo.History(ctx, pedido)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("DB error", errorbank.WithCause(err))
	}

	out := make([]dto.StatusRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.StatusRow{
			ID:     e.ID,
			Pedido: e.Pedido,
			Estado: e.Estado,
			TS:     e.TS,
			Usr:    e.Usr,
		})
	}
	return out, nil
}

func (s *Service) estadosFromCache(ctx context.Context) ([]dto.Estado, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, estadosCacheKey)
	if err != nil {
		return nil, err
	}
	var estados []dto.Estado
	if err := json.Unmarshal(bytes, &estados); err != nil {
		return nil, err
	}
	return estados, nil
}

func (s *Service) storeEstados(ctx context.Context, estados []dto.Estado) error {
	if s.cache == nil {
		return nil
	}
	bytes, err := json.Marshal(estados)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, estadosCacheKey, bytes, s.cacheTTL)
}
