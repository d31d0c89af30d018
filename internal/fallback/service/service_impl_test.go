package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/fallback/domain"
	"github.com/rcarraroia/comademig/internal/fallback/repository"
	"github.com/rcarraroia/comademig/internal/testutil/dbtest"
	"github.com/rcarraroia/comademig/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T, conn *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)),
	})
}

func storeRequest(paymentID string) domain.StoreRequest {
	return domain.StoreRequest{
		PaymentID:     paymentID,
		CustomerID:    "cus_1",
		PlanID:        "plan-1",
		AffiliateID:   "JOAO15",
		PaymentMethod: "PIX",
		AmountCents:   12000,
		Source:        domain.SourceConfirmationTimeout,
		Data: domain.RegistrationData{
			Registrant: accountdomain.Registrant{Name: "Maria", Email: "maria@example.com", MemberType: accountdomain.MemberPastor},
		},
	}
}

func TestStoreIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newService(t, conn)
	ctx := context.Background()

	stored, err := svc.Store(ctx, storeRequest("pay_1"))
	if err != nil || !stored {
		t.Fatalf("first store: stored=%v err=%v", stored, err)
	}
	stored, err = svc.Store(ctx, storeRequest("pay_1"))
	if err != nil || stored {
		t.Fatalf("second store: stored=%v err=%v", stored, err)
	}
	if n := dbtest.Count(t, conn, "pending_registrations", "status = 'pending' AND retry_count = 0 AND affiliate_id = 'JOAO15'"); n != 1 {
		t.Fatalf("expected one pending row, got %d", n)
	}
}

func TestStoreValidation(t *testing.T) {
	svc := newService(t, dbtest.Open(t))

	if _, err := svc.Store(context.Background(), storeRequest(" ")); !errors.Is(err, domain.ErrMissingPaymentID) {
		t.Fatalf("expected ErrMissingPaymentID, got %v", err)
	}
	req := storeRequest("pay_x")
	req.Source = "manual"
	if _, err := svc.Store(context.Background(), req); !errors.Is(err, domain.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newService(t, conn)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Store(ctx, storeRequest(fmt.Sprintf("pay_%d", i))); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	first, err := svc.List(ctx, domain.ListRequest{Status: domain.StatusPending, Pagination: pagination.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 || !first.PageInfo.HasMore || first.PageInfo.NextPageToken == "" {
		t.Fatalf("unexpected first page %+v", first.PageInfo)
	}
	if first.Items[0].PaymentID != "pay_2" {
		t.Fatalf("expected newest first, got %s", first.Items[0].PaymentID)
	}

	second, err := svc.List(ctx, domain.ListRequest{
		Status:     domain.StatusPending,
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 1 || second.PageInfo.HasMore || second.Items[0].PaymentID != "pay_0" {
		t.Fatalf("unexpected second page %+v", second)
	}

	if _, err := svc.List(ctx, domain.ListRequest{Status: "weird"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "%%%"}}); !errors.Is(err, pagination.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}
