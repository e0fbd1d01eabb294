package status

import "go.uber.org/fx"

// Module provides the status repository to Fx.
var Module = fx.Provide(NewRepository)
