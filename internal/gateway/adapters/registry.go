package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcarraroia/comademig/internal/gateway/domain"
)

// Registry maps a GATEWAY_PROVIDER value to the factory that builds it.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		if name := normalizeProvider(f.Provider()); name != "" {
			r.factories[name] = f
		}
	}
	return r
}

// Providers lists registered names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Build(provider string, cfg domain.AdapterConfig) (domain.Adapter, error) {
	name := normalizeProvider(provider)
	var factory domain.AdapterFactory
	if r != nil {
		factory = r.factories[name]
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", domain.ErrProviderNotFound, name, strings.Join(r.Providers(), ", "))
	}
	return factory.NewAdapter(cfg)
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
