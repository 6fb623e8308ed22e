package restaurant

import "go.uber.org/fx"

var Module = fx.Module("restaurant",
	fx.Provide(NewRepository),
)
