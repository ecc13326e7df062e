package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
)

const planKeyPrefix = "quotagate:plan:"

// planCache implements outbound.PlanCachePort.
type planCache struct {
	client *redis.Client
}

// NewPlanCache creates a new plan cache adapter.
func NewPlanCache(client *redis.Client) outbound.PlanCachePort {
	return &planCache{client: client}
}

func (c *planCache) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	val, err := c.client.Get(ctx, planKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, outbound.ErrCacheMiss
		}
		return nil, err
	}

	var plan model.Plan
	if err := json.Unmarshal([]byte(val), &plan); err != nil {
		return nil, fmt.Errorf("decode cached plan %q: %w", id, err)
	}
	return &plan, nil
}

func (c *planCache) SetPlan(ctx context.Context, plan *model.Plan, ttl time.Duration) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, planKeyPrefix+plan.ID, data, ttl).Err()
}

func (c *planCache) InvalidatePlan(ctx context.Context, id string) error {
	return c.client.Del(ctx, planKeyPrefix+id).Err()
}

// Compile-time check
var _ outbound.PlanCachePort = (*planCache)(nil)
