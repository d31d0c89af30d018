package account

import (
	"github.com/rcarraroia/comademig/internal/account/repository"
	"github.com/rcarraroia/comademig/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.materializer",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
