package notification

import (
	"github.com/rcarraroia/comademig/internal/notification/repository"
	"github.com/rcarraroia/comademig/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
