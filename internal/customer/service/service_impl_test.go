package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rcarraroia/comademig/internal/customer/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"go.uber.org/zap"
)

type fakeGateway struct {
	gatewaydomain.Gateway

	createErr error
	found     *gatewaydomain.Customer
	findErr   error

	createCalls int
	findCalls   int
	lastTaxID   string
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, req gatewaydomain.CustomerRequest) (*gatewaydomain.Customer, error) {
	f.createCalls++
	f.lastTaxID = req.TaxID
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gatewaydomain.Customer{ID: "cus_new", TaxID: req.TaxID}, nil
}

func (f *fakeGateway) FindCustomerByTaxID(ctx context.Context, taxID string) (*gatewaydomain.Customer, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.found, nil
}

func newResolver(gw gatewaydomain.Gateway) domain.Resolver {
	return New(Params{Log: zap.NewNop(), Gateway: gw})
}

func validRequest() domain.ResolveRequest {
	return domain.ResolveRequest{Name: "Maria Silva", Email: "maria@example.com", TaxID: "529.982.247-25"}
}

func TestResolveCreatesCustomer(t *testing.T) {
	gw := &fakeGateway{}
	res, err := newResolver(gw).Resolve(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID != "cus_new" || !res.Created {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if gw.lastTaxID != "52998224725" {
		t.Fatalf("expected digits-only tax id, got %q", gw.lastTaxID)
	}
	if gw.findCalls != 0 {
		t.Fatalf("expected no lookup, got %d", gw.findCalls)
	}
}

func TestResolveReusesOnConflict(t *testing.T) {
	gw := &fakeGateway{
		createErr: &gatewaydomain.Error{Provider: "fake", Operation: "create_customer", StatusCode: http.StatusConflict},
		found:     &gatewaydomain.Customer{ID: "cus_existing"},
	}
	res, err := newResolver(gw).Resolve(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID != "cus_existing" || res.Created {
		t.Fatalf("unexpected resolution %+v", res)
	}
}

func TestResolveConflictWithoutMatch(t *testing.T) {
	gw := &fakeGateway{
		createErr: &gatewaydomain.Error{Provider: "fake", Operation: "create_customer", StatusCode: http.StatusBadRequest},
		findErr:   gatewaydomain.ErrCustomerNotFound,
	}
	_, err := newResolver(gw).Resolve(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrNotFoundAfterConflict) {
		t.Fatalf("expected ErrNotFoundAfterConflict, got %v", err)
	}
}

func TestResolveServerErrorDoesNotLookup(t *testing.T) {
	gw := &fakeGateway{
		createErr: &gatewaydomain.Error{Provider: "fake", Operation: "create_customer", StatusCode: http.StatusBadGateway},
	}
	_, err := newResolver(gw).Resolve(context.Background(), validRequest())
	if !gatewaydomain.IsTransient(err) {
		t.Fatalf("expected transient gateway error, got %v", err)
	}
	if gw.findCalls != 0 {
		t.Fatalf("expected no lookup on 5xx, got %d", gw.findCalls)
	}
}

func TestResolveRejectsBadTaxID(t *testing.T) {
	gw := &fakeGateway{}
	req := validRequest()
	req.TaxID = "123"
	if _, err := newResolver(gw).Resolve(context.Background(), req); !errors.Is(err, domain.ErrInvalidTaxID) {
		t.Fatalf("expected ErrInvalidTaxID, got %v", err)
	}
	if gw.createCalls != 0 {
		t.Fatalf("gateway must not be called")
	}
}
