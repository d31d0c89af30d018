package gateway

import (
	"fmt"

	"github.com/rcarraroia/comademig/internal/config"
	"github.com/rcarraroia/comademig/internal/gateway/adapters"
	"github.com/rcarraroia/comademig/internal/gateway/adapters/asaas"
	"github.com/rcarraroia/comademig/internal/gateway/adapters/sandbox"
	"github.com/rcarraroia/comademig/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(NewRegistry),
	fx.Provide(NewAdapter),
	fx.Provide(
		func(a domain.Adapter) domain.Gateway { return a },
		func(a domain.Adapter) domain.WebhookParser { return a },
	),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		asaas.NewFactory(),
		sandbox.NewFactory(),
	)
}

// NewAdapter builds the adapter selected by GATEWAY_PROVIDER.
func NewAdapter(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Adapter, error) {
	provider := cfg.Gateway.Provider
	adapter, err := registry.Build(provider, domain.AdapterConfig{
		BaseURL:             cfg.Gateway.BaseURL,
		APIKey:              cfg.Gateway.APIKey,
		WebhookToken:        cfg.Gateway.WebhookToken,
		Timeout:             cfg.Gateway.Timeout,
		SandboxConfirmAfter: cfg.Gateway.SandboxConfirmAfter,
		SandboxRefusedCard:  cfg.Gateway.SandboxRefusedCard,
	})
	if err != nil {
		return nil, fmt.Errorf("init %s gateway: %w", provider, err)
	}

	log.Info("payment gateway ready", zap.String("provider", adapter.Provider()))
	return adapter, nil
}
