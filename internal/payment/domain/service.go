package domain

import (
	"context"

	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
)

type Initiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error)
}

type Poller interface {
	// Poll waits for a payment to settle. It never returns an error: gateway
	// failures are counted as attempts and surface in PollResult.Error.
	Poll(ctx context.Context, paymentID string, opts PollOptions) PollResult
}

// EventIngester applies a parsed webhook event to the stored record.
type EventIngester interface {
	Ingest(ctx context.Context, event gatewaydomain.PaymentEvent) (bool, error)
}
