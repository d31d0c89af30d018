package domain

import (
	"context"
	"errors"

	"github.com/Rhymond/go-money"
)

type Service interface {
	// Get returns an active plan or ErrNotFound.
	Get(ctx context.Context, id string) (*Plan, error)
	ListActive(ctx context.Context) ([]Plan, error)
}

var (
	ErrInvalidID = errors.New("invalid_plan_id")
	ErrNotFound  = errors.New("plan_not_found")
)

// Price returns the plan value as money in the plan currency.
func (p Plan) Price() *money.Money {
	currency := p.Currency
	if currency == "" {
		currency = money.BRL
	}
	return money.New(p.ValueCents, currency)
}
