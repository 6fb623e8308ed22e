package ratelimit

import "go.uber.org/fx"

var Module = fx.Module("rate.limit",
	fx.Provide(NewRepository),
	fx.Provide(NewLimiter),
	fx.Provide(NewIngestGuard),
)
