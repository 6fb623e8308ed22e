package lead

import "go.uber.org/fx"

var Module = fx.Module("lead",
	fx.Provide(NewRepository),
)
