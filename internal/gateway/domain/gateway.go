package domain

import (
	"context"
	"net/http"
	"time"
)

// Gateway is the subset of payment gateway operations the registration flow
// depends on. Implementations must be safe for concurrent use.
type Gateway interface {
	Provider() string
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	// FindCustomerByTaxID returns ErrCustomerNotFound when no customer matches.
	FindCustomerByTaxID(ctx context.Context, taxID string) (*Customer, error)
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	// FindPaymentByExternalReference returns ErrPaymentNotFound when no live
	// payment carries the reference.
	FindPaymentByExternalReference(ctx context.Context, ref string) (*Payment, error)
	ChargeCard(ctx context.Context, paymentID string, charge CardCharge) (*Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error)
}

type WebhookParser interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// Adapter is a gateway implementation that also understands its webhooks.
type Adapter interface {
	Gateway
	WebhookParser
}

type AdapterConfig struct {
	BaseURL      string
	APIKey       string
	WebhookToken string
	Timeout      time.Duration
	HTTPClient   *http.Client

	SandboxConfirmAfter int
	SandboxRefusedCard  string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}
