package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/uniedit/quotagate/internal/model"
)

var ErrCacheMiss = errors.New("cache miss")

// ErrDuplicateKey is returned by database adapters when a unique constraint rejects a write.
var ErrDuplicateKey = errors.New("duplicate key")

// PlanDatabasePort defines plan persistence operations.
type PlanDatabasePort interface {
	// List lists all plans ordered by name.
	List(ctx context.Context) ([]*model.Plan, error)

	// GetByID gets a plan by ID. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*model.Plan, error)

	// GetByName gets a plan by its unique name. Returns (nil, nil) when absent.
	GetByName(ctx context.Context, name string) (*model.Plan, error)

	// Create creates a new plan.
	Create(ctx context.Context, plan *model.Plan) error

	// Update updates a plan.
	Update(ctx context.Context, plan *model.Plan) error

	// Delete deletes a plan by ID.
	Delete(ctx context.Context, id string) error
}

// SubscriptionDatabasePort defines subscription persistence operations.
type SubscriptionDatabasePort interface {
	// Create creates a new subscription.
	Create(ctx context.Context, sub *model.Subscription) error

	// GetByUserID gets a subscription by user ID. Returns (nil, nil) when absent.
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// GetByUserIDWithPlan gets a subscription by user ID with plan loaded.
	GetByUserIDWithPlan(ctx context.Context, userID string) (*model.Subscription, error)

	// Update updates a subscription.
	Update(ctx context.Context, sub *model.Subscription) error

	// CountByPlanID counts subscriptions bound to a plan.
	CountByPlanID(ctx context.Context, planID string) (int64, error)
}

// PlanCachePort caches plan records for the decision path (Redis).
// Entries may be stale for up to their TTL.
type PlanCachePort interface {
	// GetPlan returns the cached plan or ErrCacheMiss.
	GetPlan(ctx context.Context, id string) (*model.Plan, error)

	// SetPlan stores a plan with the given TTL.
	SetPlan(ctx context.Context, plan *model.Plan, ttl time.Duration) error

	// InvalidatePlan removes a plan from the cache.
	InvalidatePlan(ctx context.Context, id string) error
}
