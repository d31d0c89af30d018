package domain

import (
	"context"
	"errors"
)

var ErrInvalidPayload = errors.New("invalid_registration_payload")

// Orchestrator runs the payment-first registration flow. Every outcome,
// including failures, is described by the returned Result.
type Orchestrator interface {
	Register(ctx context.Context, req Request) Result
}
