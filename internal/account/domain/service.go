package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMissingPaymentID   = errors.New("missing_payment_id")
	ErrMissingPlanID      = errors.New("missing_plan_id")
	ErrInvalidPassword    = errors.New("password_not_hashed")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidMemberType  = errors.New("invalid_member_type")
	ErrEmailTaken         = errors.New("email_already_registered")
	ErrPaymentUnconfirmed = errors.New("payment_not_confirmed")
)

type MaterializeRequest struct {
	PaymentID   string
	CustomerID  string
	PlanID      string
	AffiliateID string
	Registrant  Registrant
	ConfirmedAt time.Time
	// Source is "live" or "reconciler".
	Source string
	Client ClientInfo
}

type MaterializeResult struct {
	UserID            string
	SubscriptionID    int64
	AlreadyExisted    bool
	CommissionCreated bool
}

// Materializer turns a confirmed payment into a user, a profile and a
// subscription. Repeating a call with the same payment id is a no-op that
// returns the first result.
type Materializer interface {
	Materialize(ctx context.Context, req MaterializeRequest) (*MaterializeResult, error)
}
