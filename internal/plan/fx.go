package plan

import (
	"github.com/rcarraroia/comademig/internal/cache"
	"github.com/rcarraroia/comademig/internal/plan/repository"
	"github.com/rcarraroia/comademig/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(cache.NewPlanCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
