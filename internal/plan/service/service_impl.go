package service

import (
	"context"
	"strings"

	"github.com/rcarraroia/comademig/internal/cache"
	"github.com/rcarraroia/comademig/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Cache cache.PlanCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	cache cache.PlanCache
	group singleflight.Group
}

func New(p Params) domain.Service {
	planCache := p.Cache
	if planCache == nil {
		planCache = cache.NewPlanCache()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		repo:  p.Repo,
		cache: planCache,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidID
	}

	if cached, ok := s.cache.GetPlan(id); ok {
		plan := cached
		return &plan, nil
	}

	// Concurrent registrations for the same plan share one query.
	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		plan, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if plan == nil || !plan.Active {
			return nil, domain.ErrNotFound
		}
		plan.Cycle = domain.ParseCycle(string(plan.Cycle))

		s.cache.SetPlan(*plan)
		return *plan, nil
	})
	if err != nil {
		return nil, err
	}
	plan := v.(domain.Plan)
	return &plan, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Plan, error) {
	items, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Cycle = domain.ParseCycle(string(items[i].Cycle))
	}
	return items, nil
}
