package article

import "go.uber.org/fx"

// Module provides the article repository to Fx.
var Module = fx.Provide(NewRepository)
