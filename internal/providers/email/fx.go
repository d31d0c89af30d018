package email

import (
	"strings"

	"github.com/rcarraroia/comademig/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if strings.ToLower(cfg.Email.Provider) != "smtp" || cfg.Email.Host == "" {
		return Discard{}
	}
	return NewSMTP(Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
}
