package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniedit/quotagate/internal/domain/billing"
	"github.com/uniedit/quotagate/internal/shared/config"
)

// bootstrapPlans seeds the configured plans. Plans that already exist by name
// are left untouched, so restarts are idempotent.
func bootstrapPlans(ctx context.Context, domain billing.BillingDomain, seeds []config.PlanSeed, log *zap.Logger) error {
	for _, seed := range seeds {
		plan, created, err := domain.EnsurePlan(ctx, &billing.PlanInput{
			ID:           seed.ID,
			Name:         seed.Name,
			Description:  seed.Description,
			Operations:   seed.Operations,
			Quota:        seed.Quota,
			PeriodLength: seed.Period,
		})
		if err != nil {
			return fmt.Errorf("plan %q: %w", seed.Name, err)
		}
		if created {
			log.Info("seeded plan", zap.String("plan_id", plan.ID), zap.String("name", plan.Name))
		}
	}
	return nil
}
