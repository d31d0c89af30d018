package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcarraroia/comademig/internal/customer/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Gateway gatewaydomain.Gateway
}

type Service struct {
	log     *zap.Logger
	gateway gatewaydomain.Gateway
}

func New(p Params) domain.Resolver {
	return &Service{
		log:     p.Log.Named("customer.resolver"),
		gateway: p.Gateway,
	}
}

// Resolve creates the gateway customer, falling back to a tax id lookup when
// the gateway rejects the create as a client error (usually a duplicate).
func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	taxID := digitsOnly(req.TaxID)
	if len(taxID) != 11 && len(taxID) != 14 {
		return nil, domain.ErrInvalidTaxID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	log := logger.WithContext(ctx, s.log).With(zap.String("tax_id", logger.MaskTaxID(taxID)))

	created, err := s.gateway.CreateCustomer(ctx, gatewaydomain.CustomerRequest{
		Name:              name,
		Email:             strings.TrimSpace(req.Email),
		TaxID:             taxID,
		Phone:             digitsOnly(req.Phone),
		Address:           req.Address,
		ExternalReference: taxID,
	})
	if err == nil {
		log.Info("gateway customer created", zap.String("customer_id", created.ID))
		return &domain.Resolution{CustomerID: created.ID, Created: true}, nil
	}
	if !gatewaydomain.IsClientError(err) {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	log.Info("gateway rejected customer create, looking up by tax id", zap.Error(err))

	existing, findErr := s.gateway.FindCustomerByTaxID(ctx, taxID)
	if findErr != nil {
		if errors.Is(findErr, gatewaydomain.ErrCustomerNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotFoundAfterConflict, err)
		}
		return nil, fmt.Errorf("find customer: %w", findErr)
	}

	log.Info("gateway customer reused", zap.String("customer_id", existing.ID))
	return &domain.Resolution{CustomerID: existing.ID, Created: false}, nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
