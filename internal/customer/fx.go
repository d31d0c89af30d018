package customer

import (
	"github.com/rcarraroia/comademig/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.resolver",
	fx.Provide(service.New),
)
