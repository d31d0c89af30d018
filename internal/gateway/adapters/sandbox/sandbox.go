// Package sandbox is an in-memory gateway for local development. Payments
// confirm after a configurable number of status checks.
package sandbox

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rcarraroia/comademig/internal/gateway/domain"
)

const providerName = "sandbox"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	return New(cfg), nil
}

type payment struct {
	domain.Payment
	checks int
}

type Adapter struct {
	mu            sync.Mutex
	confirmAfter  int
	refusedCard   string
	webhookToken  string
	customers     map[string]domain.Customer
	customerByTax map[string]string
	payments      map[string]*payment
}

func New(cfg domain.AdapterConfig) *Adapter {
	confirmAfter := cfg.SandboxConfirmAfter
	if confirmAfter < 0 {
		confirmAfter = 0
	}
	return &Adapter{
		confirmAfter:  confirmAfter,
		refusedCard:   digitsOnly(cfg.SandboxRefusedCard),
		webhookToken:  strings.TrimSpace(cfg.WebhookToken),
		customers:     map[string]domain.Customer{},
		customerByTax: map[string]string{},
		payments:      map[string]*payment{},
	}
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.Error{Provider: providerName, Operation: "create_customer", Err: err}
	}
	taxID := digitsOnly(req.TaxID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.customerByTax[taxID]; exists {
		return nil, &domain.Error{
			Provider:    providerName,
			Operation:   "create_customer",
			StatusCode:  http.StatusConflict,
			Code:        "customer_exists",
			Description: "customer already registered",
		}
	}

	customer := domain.Customer{
		ID:    "cus_" + strings.ToLower(ulid.Make().String()),
		Name:  req.Name,
		Email: req.Email,
		TaxID: taxID,
	}
	a.customers[customer.ID] = customer
	a.customerByTax[taxID] = customer.ID
	return &customer, nil
}

func (a *Adapter) FindCustomerByTaxID(ctx context.Context, taxID string) (*domain.Customer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.customerByTax[digitsOnly(taxID)]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	customer := a.customers[id]
	return &customer, nil
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.Error{Provider: providerName, Operation: "create_payment", Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.customers[req.CustomerID]; !ok {
		return nil, &domain.Error{Provider: providerName, Operation: "create_payment", StatusCode: http.StatusBadRequest, Code: "invalid_customer"}
	}

	p := &payment{Payment: domain.Payment{
		ID:          "pay_" + strings.ToLower(ulid.Make().String()),
		CustomerID:  req.CustomerID,
		BillingType: req.BillingType,
		ValueCents:  req.ValueCents,
		Status:      domain.StatusPending,
		RawStatus:   "PENDING",
		InvoiceURL:  "https://sandbox.invalid/invoices/" + req.ExternalReference,
		DueDate:     req.DueDate,

		ExternalReference: req.ExternalReference,
	}}
	a.payments[p.ID] = p

	out := p.Payment
	return &out, nil
}

func (a *Adapter) FindPaymentByExternalReference(ctx context.Context, ref string) (*domain.Payment, error) {
	ref = strings.TrimSpace(ref)

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range a.payments {
		if ref != "" && p.ExternalReference == ref {
			out := p.Payment
			return &out, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (a *Adapter) ChargeCard(ctx context.Context, paymentID string, charge domain.CardCharge) (*domain.Payment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.payments[paymentID]
	if !ok {
		return nil, &domain.Error{Provider: providerName, Operation: "charge_card", StatusCode: http.StatusNotFound}
	}
	if a.refusedCard != "" && digitsOnly(charge.Card.Number) == a.refusedCard {
		p.Status = domain.StatusRefused
		p.RawStatus = "REFUSED"
		return nil, &domain.Error{
			Provider:    providerName,
			Operation:   "charge_card",
			StatusCode:  http.StatusBadRequest,
			Code:        "card_refused",
			Description: "transaction not authorized",
		}
	}

	out := p.Payment
	return &out, nil
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.Error{Provider: providerName, Operation: "get_payment", Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.payments[paymentID]
	if !ok {
		return "", domain.ErrPaymentNotFound
	}
	p.checks++
	if p.Status == domain.StatusPending && p.checks >= a.confirmAfter {
		p.Status = domain.StatusConfirmed
		p.RawStatus = "CONFIRMED"
	}
	return p.Status, nil
}

// SetStatus forces a payment status, as a gateway back-office action would.
func (a *Adapter) SetStatus(paymentID string, status domain.PaymentStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.payments[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.Status = status
	p.RawStatus = string(status)
	return nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookToken == "" {
		return nil
	}
	token := strings.TrimSpace(headers.Get("X-Sandbox-Token"))
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.webhookToken)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

type sandboxEvent struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event sandboxEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.PaymentID == "" {
		return nil, domain.ErrInvalidPayload
	}

	status := domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(event.Status)))
	switch status {
	case domain.StatusPending, domain.StatusConfirmed, domain.StatusRefused, domain.StatusOverdue, domain.StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: status %q", domain.ErrEventIgnored, event.Status)
	}

	if err := a.SetStatus(event.PaymentID, status); err != nil {
		return nil, err
	}

	return &domain.PaymentEvent{
		Provider:   providerName,
		EventID:    event.ID,
		EventType:  "PAYMENT_" + string(status),
		PaymentID:  event.PaymentID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}, nil
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
