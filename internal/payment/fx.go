package payment

import (
	"github.com/rcarraroia/comademig/internal/payment/repository"
	"github.com/rcarraroia/comademig/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewInitiator),
	fx.Provide(service.NewPoller),
	fx.Provide(service.NewIngester),
)
