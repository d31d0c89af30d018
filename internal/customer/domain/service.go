package domain

import (
	"context"
	"errors"

	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
)

var (
	ErrInvalidTaxID = errors.New("invalid_tax_id")
	ErrInvalidName  = errors.New("invalid_customer_name")
	// ErrNotFoundAfterConflict means the gateway refused the create but the
	// tax id lookup found nobody either.
	ErrNotFoundAfterConflict = errors.New("customer_not_found_after_conflict")
)

type ResolveRequest struct {
	Name    string
	Email   string
	TaxID   string
	Phone   string
	Address gatewaydomain.Address
}

type Resolution struct {
	CustomerID string
	// Created is false when an existing gateway customer was reused.
	Created bool
}

// Resolver maps a registrant to a gateway customer id. Resolving the same tax
// id twice yields the same customer.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error)
}
