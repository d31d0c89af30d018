package asaas

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	providerName   = "asaas"
	defaultBaseURL = "https://sandbox.asaas.com/api/v3"
	webhookHeader  = "asaas-access-token"
	dateLayout     = "2006-01-02"
	maxBodyBytes   = 1 << 20

	getAttempts  = 3
	retryBackoff = 250 * time.Millisecond
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, domain.ErrInvalidConfig
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Adapter{
		baseURL:      baseURL,
		apiKey:       apiKey,
		webhookToken: strings.TrimSpace(cfg.WebhookToken),
		client:       client,
		tracer:       otel.Tracer("comademig/gateway/asaas"),
	}, nil
}

// Adapter talks to the Asaas v3 REST API.
type Adapter struct {
	baseURL      string
	apiKey       string
	webhookToken string
	client       *http.Client
	tracer       trace.Tracer
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (*domain.Customer, error) {
	body := customerPayload{
		Name:                 strings.TrimSpace(req.Name),
		Email:                strings.TrimSpace(req.Email),
		CPFCNPJ:              digitsOnly(req.TaxID),
		MobilePhone:          digitsOnly(req.Phone),
		PostalCode:           digitsOnly(req.Address.PostalCode),
		Address:              req.Address.Street,
		AddressNumber:        req.Address.Number,
		Complement:           req.Address.Complement,
		Province:             req.Address.District,
		ExternalReference:    req.ExternalReference,
		NotificationDisabled: true,
	}

	var resp customerResponse
	if err := a.do(ctx, "create_customer", http.MethodPost, "/customers", nil, body, &resp); err != nil {
		return nil, err
	}
	return toCustomer(resp), nil
}

func (a *Adapter) FindCustomerByTaxID(ctx context.Context, taxID string) (*domain.Customer, error) {
	query := url.Values{}
	query.Set("cpfCnpj", digitsOnly(taxID))

	var resp customerList
	if err := a.do(ctx, "find_customer", http.MethodGet, "/customers", query, nil, &resp); err != nil {
		return nil, err
	}
	for _, item := range resp.Data {
		if item.Deleted || item.ID == "" {
			continue
		}
		return toCustomer(item), nil
	}
	return nil, domain.ErrCustomerNotFound
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	if req.ValueCents <= 0 {
		return nil, &domain.Error{Provider: providerName, Operation: "create_payment", StatusCode: http.StatusBadRequest, Code: "invalid_value"}
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now().UTC()
	}

	body := paymentPayload{
		Customer:          req.CustomerID,
		BillingType:       string(req.BillingType),
		Value:             money.New(req.ValueCents, money.BRL).AsMajorUnits(),
		DueDate:           dueDate.Format(dateLayout),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}

	var resp paymentResponse
	if err := a.do(ctx, "create_payment", http.MethodPost, "/payments", nil, body, &resp); err != nil {
		return nil, err
	}
	return toPayment(resp), nil
}

func (a *Adapter) FindPaymentByExternalReference(ctx context.Context, ref string) (*domain.Payment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrPaymentNotFound
	}
	query := url.Values{}
	query.Set("externalReference", ref)

	var resp paymentList
	if err := a.do(ctx, "find_payment", http.MethodGet, "/payments", query, nil, &resp); err != nil {
		return nil, err
	}
	for _, item := range resp.Data {
		if item.ID == "" || item.Deleted {
			continue
		}
		return toPayment(item), nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (a *Adapter) ChargeCard(ctx context.Context, paymentID string, charge domain.CardCharge) (*domain.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrPaymentNotFound
	}

	body := payWithCardPayload{
		CreditCard: creditCardPayload{
			HolderName:  strings.TrimSpace(charge.Card.HolderName),
			Number:      digitsOnly(charge.Card.Number),
			ExpiryMonth: charge.Card.ExpiryMonth,
			ExpiryYear:  charge.Card.ExpiryYear,
			CCV:         digitsOnly(charge.Card.CCV),
		},
		CreditCardHolderInfo: creditCardHolderPayload{
			Name:          charge.Holder.Name,
			Email:         charge.Holder.Email,
			CPFCNPJ:       digitsOnly(charge.Holder.TaxID),
			PostalCode:    digitsOnly(charge.Holder.PostalCode),
			AddressNumber: charge.Holder.AddressNumber,
			Phone:         digitsOnly(charge.Holder.Phone),
		},
		RemoteIP: charge.RemoteIP,
	}

	var resp paymentResponse
	path := "/payments/" + url.PathEscape(paymentID) + "/payWithCreditCard"
	if err := a.do(ctx, "charge_card", http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	return toPayment(resp), nil
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return "", domain.ErrPaymentNotFound
	}

	var resp paymentResponse
	if err := a.do(ctx, "get_payment", http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, nil, &resp); err != nil {
		var gwErr *domain.Error
		if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %v", domain.ErrPaymentNotFound, err)
		}
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookToken == "" {
		return domain.ErrInvalidSignature
	}
	token := strings.TrimSpace(headers.Get(webhookHeader))
	if token == "" {
		return domain.ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.webhookToken)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.Event) == "" || strings.TrimSpace(event.Payment.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	status, ok := statusForEvent(event.Event, event.Payment.Status)
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if parsed, err := time.Parse("2006-01-02 15:04:05", event.DateCreated); err == nil {
		occurredAt = parsed.UTC()
	}

	return &domain.PaymentEvent{
		Provider:          providerName,
		EventID:           event.ID,
		EventType:         event.Event,
		PaymentID:         event.Payment.ID,
		ExternalReference: event.Payment.ExternalReference,
		Status:            status,
		OccurredAt:        occurredAt,
	}, nil
}

// do performs one API call. GET requests are retried on transient failures;
// writes are never retried so a charge cannot be duplicated.
func (a *Adapter) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	ctx, span := a.tracer.Start(ctx, "asaas."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.provider", providerName),
		attribute.String("gateway.operation", operation),
		attribute.String("http.method", method),
	)

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = getAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = a.once(ctx, operation, method, path, query, encoded, out)
		if lastErr == nil || !domain.IsTransient(lastErr) || attempt == attempts {
			break
		}
		wait := retryBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
		select {
		case <-ctx.Done():
			lastErr = &domain.Error{Provider: providerName, Operation: operation, Err: ctx.Err()}
		case <-time.After(wait):
			continue
		}
		break
	}

	if lastErr != nil {
		span.RecordError(tracing.SafeError(lastErr))
		span.SetStatus(codes.Error, operation+" failed")
	}
	return lastErr
}

func (a *Adapter) once(ctx context.Context, operation, method, path string, query url.Values, encoded []byte, out any) error {
	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &domain.Error{Provider: providerName, Operation: operation, Err: err}
	}
	req.Header.Set("access_token", a.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "comademig-registration")
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := a.client.Do(req)
	if err != nil {
		return &domain.Error{Provider: providerName, Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.Error{Provider: providerName, Operation: operation, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &domain.Error{Provider: providerName, Operation: operation, StatusCode: resp.StatusCode}
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && len(apiErr.Errors) > 0 {
			gwErr.Code = apiErr.Errors[0].Code
			gwErr.Description = apiErr.Errors[0].Description
		}
		return gwErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.Error{Provider: providerName, Operation: operation, StatusCode: resp.StatusCode, Code: "invalid_response", Err: err}
	}
	return nil
}

func toCustomer(resp customerResponse) *domain.Customer {
	return &domain.Customer{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
		TaxID: resp.CPFCNPJ,
	}
}

func toPayment(resp paymentResponse) *domain.Payment {
	payment := &domain.Payment{
		ID:          resp.ID,
		CustomerID:  resp.Customer,
		BillingType: domain.BillingType(resp.BillingType),
		ValueCents:  int64(math.Round(resp.Value * 100)),
		Status:      normalizeStatus(resp.Status),
		RawStatus:   resp.Status,
		InvoiceURL:  resp.InvoiceURL,

		ExternalReference: resp.ExternalReference,
	}
	if due, err := time.Parse(dateLayout, resp.DueDate); err == nil {
		payment.DueDate = due
	}
	return payment
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
