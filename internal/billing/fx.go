package billing

import (
	"github.com/Stugi/resto-worker/internal/billing/repository"
	"github.com/Stugi/resto-worker/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
