package app

import (
	"go.uber.org/fx"

	"github.com/brandatta/comex-vicomx/internal/cache"
	"github.com/brandatta/comex-vicomx/internal/clock"
	"github.com/brandatta/comex-vicomx/internal/config"
	"github.com/brandatta/comex-vicomx/internal/database"
	"github.com/brandatta/comex-vicomx/internal/logger"
	"github.com/brandatta/comex-vicomx/internal/messaging"
	"github.com/brandatta/comex-vicomx/internal/observability"
	repositoryarticle "github.com/brandatta/comex-vicomx/internal/repository/article"
	repositoryorder "github.com/brandatta/comex-vicomx/internal/repository/order"
	repositorystatus "github.com/brandatta/comex-vicomx/internal/repository/status"
	grpcserver "github.com/brandatta/comex-vicomx/internal/server/grpc"
	httpserver "github.com/brandatta/comex-vicomx/internal/server/http"
	serviceorder "github.com/brandatta/comex-vicomx/internal/service/order"
	servicestatus "github.com/brandatta/comex-vicomx/internal/service/status"
	transporthttp "github.com/brandatta/comex-vicomx/internal/transport/http"
	"github.com/brandatta/comex-vicomx/internal/worker"
	workerorder "github.com/brandatta/comex-vicomx/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	clock.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryarticle.Module,
	repositoryorder.Module,
	repositorystatus.Module,
	serviceorder.Module,
	servicestatus.Module,
)

// HTTP wires the HTTP and gRPC surfaces on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
