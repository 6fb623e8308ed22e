package groups

import "go.uber.org/fx"

var Module = fx.Module("groups",
	fx.Provide(NewRepository),
	fx.Provide(NewClient),
	fx.Provide(NewProvisioner),
)
