package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/brandatta/comex-vicomx/internal/transport/http/order"
	statustransport "github.com/brandatta/comex-vicomx/internal/transport/http/status"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	statustransport.Module,
)
