package voice

import (
	"github.com/Stugi/resto-worker/internal/voice/repository"
	"github.com/Stugi/resto-worker/internal/voice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voice",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
