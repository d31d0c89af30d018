package registration

import (
	"github.com/rcarraroia/comademig/internal/registration/service"
	"github.com/rcarraroia/comademig/internal/registration/validation"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.flow",
	fx.Provide(validation.New),
	fx.Provide(service.New),
)
