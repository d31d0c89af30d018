package fallback

import (
	"github.com/rcarraroia/comademig/internal/fallback/repository"
	"github.com/rcarraroia/comademig/internal/fallback/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fallback.queue",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
