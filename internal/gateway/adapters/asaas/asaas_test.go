package asaas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcarraroia/comademig/internal/gateway/domain"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		WebhookToken: "hook-secret",
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter.(*Adapter)
}

func TestCreateCustomerSendsAccessToken(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("access_token") != "test-key" {
			t.Errorf("missing access_token header")
		}
		var body customerPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.CPFCNPJ != "52998224725" || body.PostalCode != "30130010" {
			t.Errorf("expected digits only, got cpf=%s cep=%s", body.CPFCNPJ, body.PostalCode)
		}
		_, _ = io.WriteString(w, `{"id":"cus_1","name":"Maria","cpfCnpj":"52998224725"}`)
	})

	customer, err := adapter.CreateCustomer(context.Background(), domain.CustomerRequest{
		Name:    "Maria",
		TaxID:   "529.982.247-25",
		Address: domain.Address{PostalCode: "30130-010"},
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if customer.ID != "cus_1" {
		t.Fatalf("unexpected customer %+v", customer)
	}
}

func TestCreateCustomerConflictIsClientError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"code":"invalid_cpfCnpj","description":"já cadastrado"}]}`)
	})

	_, err := adapter.CreateCustomer(context.Background(), domain.CustomerRequest{Name: "Maria", TaxID: "52998224725"})
	if !domain.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
	var gwErr *domain.Error
	if !errors.As(err, &gwErr) || gwErr.Code != "invalid_cpfCnpj" {
		t.Fatalf("expected decoded error code, got %v", err)
	}
}

func TestFindCustomerByTaxID(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cpfCnpj") != "52998224725" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"cus_old","deleted":true},{"id":"cus_2"}],"totalCount":2}`)
	})

	customer, err := adapter.FindCustomerByTaxID(context.Background(), "529.982.247-25")
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if customer.ID != "cus_2" {
		t.Fatalf("expected first non-deleted customer, got %s", customer.ID)
	}
}

func TestFindCustomerByTaxIDNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[],"totalCount":0}`)
	})

	if _, err := adapter.FindCustomerByTaxID(context.Background(), "52998224725"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCreatePaymentConvertsValue(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var body paymentPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Value != 120.5 || body.BillingType != "PIX" || body.DueDate != "2025-03-10" {
			t.Errorf("unexpected payment body %+v", body)
		}
		_, _ = io.WriteString(w, `{"id":"pay_1","customer":"cus_1","billingType":"PIX","value":120.5,"status":"PENDING","dueDate":"2025-03-10"}`)
	})

	payment, err := adapter.CreatePayment(context.Background(), domain.PaymentRequest{
		CustomerID:  "cus_1",
		BillingType: domain.BillingPix,
		ValueCents:  12050,
		DueDate:     time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.ID != "pay_1" || payment.ValueCents != 12050 || payment.Status != domain.StatusPending {
		t.Fatalf("unexpected payment %+v", payment)
	}
}

func TestCreatePaymentIsNotRetried(t *testing.T) {
	var calls int32
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := adapter.CreatePayment(context.Background(), domain.PaymentRequest{CustomerID: "cus_1", BillingType: domain.BillingPix, ValueCents: 100})
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single POST, got %d", got)
	}
}

func TestFindPaymentByExternalReference(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/payments" || r.URL.Query().Get("externalReference") != "att_1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		}
		_, _ = io.WriteString(w, `{"data":[
			{"id":"pay_old","status":"PENDING","deleted":true,"externalReference":"att_1"},
			{"id":"pay_1","status":"RECEIVED","value":120.5,"externalReference":"att_1"}
		],"totalCount":2}`)
	})

	payment, err := adapter.FindPaymentByExternalReference(context.Background(), "att_1")
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	if payment.ID != "pay_1" || payment.Status != domain.StatusConfirmed || payment.ValueCents != 12050 || payment.ExternalReference != "att_1" {
		t.Fatalf("unexpected payment %+v", payment)
	}
}

func TestFindPaymentByExternalReferenceNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[],"totalCount":0}`)
	})

	if _, err := adapter.FindPaymentByExternalReference(context.Background(), "att_none"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestGetPaymentStatusRetriesTransient(t *testing.T) {
	var calls int32
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"id":"pay_1","status":"RECEIVED"}`)
	})

	status, err := adapter.GetPaymentStatus(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != domain.StatusConfirmed {
		t.Fatalf("expected RECEIVED to normalize to CONFIRMED, got %s", status)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected one retry, got %d calls", got)
	}
}

func TestGetPaymentStatusNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := adapter.GetPaymentStatus(context.Background(), "pay_404"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	headers := http.Header{}
	if err := adapter.Verify(context.Background(), nil, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected missing token to fail, got %v", err)
	}
	headers.Set(webhookHeader, "wrong")
	if err := adapter.Verify(context.Background(), nil, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected wrong token to fail, got %v", err)
	}
	headers.Set(webhookHeader, "hook-secret")
	if err := adapter.Verify(context.Background(), nil, headers); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
}

func TestParseWebhook(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	event, err := adapter.Parse(context.Background(), []byte(`{
		"id": "evt_1",
		"event": "PAYMENT_RECEIVED",
		"dateCreated": "2025-03-10 10:00:00",
		"payment": {"id": "pay_1", "status": "RECEIVED", "externalReference": "att_1"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.PaymentID != "pay_1" || event.Status != domain.StatusConfirmed || event.ExternalReference != "att_1" {
		t.Fatalf("unexpected event %+v", event)
	}

	_, err = adapter.Parse(context.Background(), []byte(`{"event":"PAYMENT_BANK_SLIP_VIEWED","payment":{"id":"pay_1"}}`))
	if !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}

	_, err = adapter.Parse(context.Background(), []byte(`not json`))
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]domain.PaymentStatus{
		"CONFIRMED":              domain.StatusConfirmed,
		"RECEIVED":               domain.StatusConfirmed,
		"RECEIVED_IN_CASH":       domain.StatusConfirmed,
		"PENDING":                domain.StatusPending,
		"AWAITING_RISK_ANALYSIS": domain.StatusPending,
		"OVERDUE":                domain.StatusOverdue,
		"REFUNDED":               domain.StatusCancelled,
		"CHARGEBACK_REQUESTED":   domain.StatusCancelled,
		"something_new":          domain.StatusPending,
	}
	for raw, want := range cases {
		if got := normalizeStatus(raw); got != want {
			t.Fatalf("normalizeStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewAdapterRequiresAPIKey(t *testing.T) {
	if _, err := NewFactory().NewAdapter(domain.AdapterConfig{}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
