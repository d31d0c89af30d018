package providers

import (
	"github.com/rcarraroia/comademig/internal/providers/email"
	"github.com/rcarraroia/comademig/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
)
