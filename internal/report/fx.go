package report

import (
	"github.com/Stugi/resto-worker/internal/report/repository"
	"github.com/Stugi/resto-worker/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
