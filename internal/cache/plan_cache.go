package cache

import (
	"strings"
	"time"

	plandomain "github.com/rcarraroia/comademig/internal/plan/domain"
)

const defaultPlanTTL = time.Minute

// PlanCache stores subscription plan lookups for the registration hot path.
type PlanCache interface {
	GetPlan(planID string) (plandomain.Plan, bool)
	SetPlan(plan plandomain.Plan)
	InvalidatePlan(planID string)
}

type planCache struct {
	plans Cache[string, plandomain.Plan]
	ttl   time.Duration
}

func NewPlanCache() PlanCache {
	return NewPlanCacheWithTTL(defaultPlanTTL)
}

func NewPlanCacheWithTTL(ttl time.Duration) PlanCache {
	return &planCache{
		plans: NewTTLCache[string, plandomain.Plan](),
		ttl:   ttl,
	}
}

func (c *planCache) GetPlan(planID string) (plandomain.Plan, bool) {
	return c.plans.Get(cacheKey(planID))
}

func (c *planCache) SetPlan(plan plandomain.Plan) {
	if strings.TrimSpace(plan.ID) == "" {
		return
	}
	c.plans.Set(cacheKey(plan.ID), plan, c.ttl)
}

func (c *planCache) InvalidatePlan(planID string) {
	c.plans.Delete(cacheKey(planID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
