package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rcarraroia/comademig/internal/cache"
	"github.com/rcarraroia/comademig/internal/plan/domain"
	"github.com/rcarraroia/comademig/internal/plan/repository"
	"github.com/rcarraroia/comademig/internal/plan/service"
	"github.com/rcarraroia/comademig/internal/testutil/dbtest"
	"go.uber.org/zap"
)

func TestGetPlanReadsThroughCache(t *testing.T) {
	db := dbtest.Open(t)
	if err := db.Exec(
		`INSERT INTO subscription_plans (id, name, member_type, value_cents, currency, cycle, active, capabilities)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"plan-pastor", "Pastor Anual", "pastor", 12000, "BRL", "annual", true, `["manage_events","manage_members"]`,
	).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  repository.Provide(),
		Cache: cache.NewPlanCache(),
	})

	plan, err := svc.Get(context.Background(), "plan-pastor")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan.Cycle != domain.CycleYearly {
		t.Fatalf("expected normalized YEARLY cycle, got %s", plan.Cycle)
	}
	if !plan.Capabilities.Has(domain.CapManageMembers) || plan.Capabilities.Has(domain.CapFinancialReports) {
		t.Fatalf("unexpected capabilities %v", plan.Capabilities.Names())
	}
	if plan.Price().Amount() != 12000 || plan.Price().Currency().Code != "BRL" {
		t.Fatalf("unexpected price %s", plan.Price().Display())
	}

	if err := db.Exec(`DELETE FROM subscription_plans`).Error; err != nil {
		t.Fatalf("delete plans: %v", err)
	}
	if _, err := svc.Get(context.Background(), "plan-pastor"); err != nil {
		t.Fatalf("expected cached plan, got %v", err)
	}
}

func TestGetPlanRejectsInactive(t *testing.T) {
	db := dbtest.Open(t)
	if err := db.Exec(
		`INSERT INTO subscription_plans (id, name, value_cents, cycle, active) VALUES (?, ?, ?, ?, ?)`,
		"plan-old", "Antigo", 5000, "MONTHLY", false,
	).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	if _, err := svc.Get(context.Background(), "plan-old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
