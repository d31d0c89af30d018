package adapters_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rcarraroia/comademig/internal/gateway/adapters"
	"github.com/rcarraroia/comademig/internal/gateway/adapters/asaas"
	"github.com/rcarraroia/comademig/internal/gateway/adapters/sandbox"
	"github.com/rcarraroia/comademig/internal/gateway/domain"
)

func TestRegistryBuildsCaseInsensitive(t *testing.T) {
	registry := adapters.NewRegistry(asaas.NewFactory(), sandbox.NewFactory(), nil)

	if got := strings.Join(registry.Providers(), ","); got != "asaas,sandbox" {
		t.Fatalf("unexpected providers %q", got)
	}

	adapter, err := registry.Build(" Sandbox ", domain.AdapterConfig{})
	if err != nil {
		t.Fatalf("build sandbox: %v", err)
	}
	if adapter.Provider() != "sandbox" {
		t.Fatalf("expected sandbox adapter, got %s", adapter.Provider())
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry := adapters.NewRegistry(sandbox.NewFactory())

	_, err := registry.Build("stripe", domain.AdapterConfig{})
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "sandbox") {
		t.Fatalf("expected known providers in error, got %v", err)
	}
}
