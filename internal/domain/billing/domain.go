package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/quotagate/internal/domain/access"
	"github.com/uniedit/quotagate/internal/infra/events"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"go.uber.org/zap"
)

// BillingDomain defines the plan catalog and subscription directory service.
type BillingDomain interface {
	ListPlans(ctx context.Context) ([]*model.Plan, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	CreatePlan(ctx context.Context, in *PlanInput) (*model.Plan, error)
	UpdatePlan(ctx context.Context, id string, in *PlanUpdate) (*model.Plan, error)
	DeletePlan(ctx context.Context, id string) error

	// EnsurePlan creates the plan unless one with the same name exists.
	// The boolean reports whether a plan was created.
	EnsurePlan(ctx context.Context, in *PlanInput) (*model.Plan, bool, error)

	Subscribe(ctx context.Context, userID, planID string) (*model.Subscription, error)
	ChangePlan(ctx context.Context, userID, planID string) (*model.Subscription, error)
	GetSubscription(ctx context.Context, userID string) (*model.SubscriptionDetails, error)
}

// UsageReader reports a user's consumption in the current period.
type UsageReader interface {
	GetUsage(ctx context.Context, userID string, now time.Time) (*model.UsageStatus, error)
}

// Option configures optional collaborators of the domain.
type Option func(*Domain)

// WithPlanCache invalidates cached plans on every catalog write.
func WithPlanCache(cache outbound.PlanCachePort) Option {
	return func(d *Domain) { d.planCache = cache }
}

// WithLedger initialises the first period counter of new subscriptions.
func WithLedger(ledger outbound.UsageLedgerPort) Option {
	return func(d *Domain) { d.ledger = ledger }
}

// WithUsageReader attaches current usage to subscription lookups.
func WithUsageReader(r UsageReader) Option {
	return func(d *Domain) { d.usage = r }
}

// WithEventPublisher sets the publisher for subscription events.
func WithEventPublisher(p events.Publisher) Option {
	return func(d *Domain) { d.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Domain) { d.now = now }
}

// Domain implements plan catalog and subscription administration.
type Domain struct {
	planDB         outbound.PlanDatabasePort
	subscriptionDB outbound.SubscriptionDatabasePort
	planCache      outbound.PlanCachePort
	ledger         outbound.UsageLedgerPort
	usage          UsageReader
	publisher      events.Publisher
	now            func() time.Time
	logger         *zap.Logger
}

// NewBillingDomain creates a new billing domain service.
func NewBillingDomain(
	planDB outbound.PlanDatabasePort,
	subscriptionDB outbound.SubscriptionDatabasePort,
	logger *zap.Logger,
	opts ...Option,
) *Domain {
	d := &Domain{
		planDB:         planDB,
		subscriptionDB: subscriptionDB,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compile-time interface check
var _ BillingDomain = (*Domain)(nil)

// --- Plan Operations ---

func (d *Domain) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	return d.planDB.List(ctx)
}

func (d *Domain) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidRequest
	}

	plan, err := d.planDB.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (d *Domain) CreatePlan(ctx context.Context, in *PlanInput) (*model.Plan, error) {
	if in == nil {
		return nil, ErrInvalidRequest
	}

	now := d.now().UTC()
	plan := &model.Plan{
		ID:           strings.TrimSpace(in.ID),
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Operations:   normalizeOperations(in.Operations),
		Quota:        in.Quota,
		PeriodLength: in.PeriodLength,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.PeriodLength == 0 {
		plan.PeriodLength = model.DefaultPeriodLength
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	existing, err := d.planDB.GetByName(ctx, plan.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPlanExists
	}

	if err := d.planDB.Create(ctx, plan); err != nil {
		if errors.Is(err, outbound.ErrDuplicateKey) {
			return nil, ErrPlanExists
		}
		return nil, fmt.Errorf("create plan: %w", err)
	}

	d.logger.Info("plan created",
		zap.String("plan_id", plan.ID),
		zap.String("name", plan.Name),
		zap.Int64("quota", plan.Quota),
	)
	return plan, nil
}

func (d *Domain) EnsurePlan(ctx context.Context, in *PlanInput) (*model.Plan, bool, error) {
	if in == nil {
		return nil, false, ErrInvalidRequest
	}

	existing, err := d.planDB.GetByName(ctx, strings.TrimSpace(in.Name))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	plan, err := d.CreatePlan(ctx, in)
	if errors.Is(err, ErrPlanExists) {
		// Lost a race with another instance seeding the same plan.
		existing, err = d.planDB.GetByName(ctx, strings.TrimSpace(in.Name))
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return plan, true, nil
}

func (d *Domain) UpdatePlan(ctx context.Context, id string, in *PlanUpdate) (*model.Plan, error) {
	if in == nil {
		return nil, ErrInvalidRequest
	}

	plan, err := d.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	in.apply(plan)
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	if in.Name != nil {
		other, err := d.planDB.GetByName(ctx, plan.Name)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != plan.ID {
			return nil, ErrPlanExists
		}
	}

	plan.UpdatedAt = d.now().UTC()
	if err := d.planDB.Update(ctx, plan); err != nil {
		if errors.Is(err, outbound.ErrDuplicateKey) {
			return nil, ErrPlanExists
		}
		return nil, fmt.Errorf("update plan: %w", err)
	}

	d.invalidatePlan(ctx, plan.ID)
	d.logger.Info("plan updated", zap.String("plan_id", plan.ID))
	return plan, nil
}

func (d *Domain) DeletePlan(ctx context.Context, id string) error {
	if _, err := d.GetPlan(ctx, id); err != nil {
		return err
	}

	n, err := d.subscriptionDB.CountByPlanID(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d subscriptions", ErrPlanInUse, n)
	}

	if err := d.planDB.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	d.invalidatePlan(ctx, id)
	d.logger.Info("plan deleted", zap.String("plan_id", id))
	return nil
}

func (d *Domain) invalidatePlan(ctx context.Context, id string) {
	if d.planCache == nil {
		return
	}
	if err := d.planCache.InvalidatePlan(ctx, id); err != nil {
		d.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", id), zap.Error(err))
	}
}

// --- Subscription Operations ---

func (d *Domain) Subscribe(ctx context.Context, userID, planID string) (*model.Subscription, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(planID) == "" {
		return nil, ErrInvalidRequest
	}

	existing, err := d.subscriptionDB.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSubscriptionExists
	}

	plan, err := d.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	// Stored starts must survive a timestamptz round trip unchanged, or the
	// period key computed here would differ from the one read back.
	now := d.now().UTC().Truncate(time.Microsecond)
	sub := &model.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    plan.ID,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.subscriptionDB.Create(ctx, sub); err != nil {
		if errors.Is(err, outbound.ErrDuplicateKey) {
			return nil, ErrSubscriptionExists
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	sub.Plan = plan

	d.openPeriod(ctx, sub, plan, now)
	d.publish(newSubscriptionChangedEvent(sub, ""))

	d.logger.Info("subscription created",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
	)
	return sub, nil
}

func (d *Domain) ChangePlan(ctx context.Context, userID, planID string) (*model.Subscription, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(planID) == "" {
		return nil, ErrInvalidRequest
	}

	sub, err := d.subscriptionDB.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	if sub.PlanID == planID {
		return nil, ErrSamePlan
	}

	plan, err := d.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	// StartedAt is kept: periods stay anchored to the original subscription,
	// so returning to a plan within a period resumes that plan's counter.
	previous := sub.PlanID
	now := d.now().UTC().Truncate(time.Microsecond)
	sub.PlanID = plan.ID
	sub.UpdatedAt = now
	sub.Plan = nil

	if err := d.subscriptionDB.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	sub.Plan = plan

	d.openPeriod(ctx, sub, plan, now)
	d.publish(newSubscriptionChangedEvent(sub, previous))

	d.logger.Info("subscription plan changed",
		zap.String("user_id", userID),
		zap.String("from_plan_id", previous),
		zap.String("to_plan_id", plan.ID),
	)
	return sub, nil
}

func (d *Domain) GetSubscription(ctx context.Context, userID string) (*model.SubscriptionDetails, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}

	sub, err := d.subscriptionDB.GetByUserIDWithPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	plan := sub.Plan
	if plan == nil {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, sub.PlanID)
	}

	details := &model.SubscriptionDetails{Subscription: sub, Plan: plan}
	if d.usage != nil {
		usage, err := d.usage.GetUsage(ctx, userID, d.now())
		if err != nil {
			d.logger.Warn("failed to load usage for subscription",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else {
			details.Usage = usage
		}
	}
	return details, nil
}

// openPeriod creates the counter for the plan's period containing now.
// Failure is not fatal: the ledger initialises counters lazily on first debit.
// Reset never touches an existing counter.
func (d *Domain) openPeriod(ctx context.Context, sub *model.Subscription, plan *model.Plan, now time.Time) {
	if d.ledger == nil {
		return
	}

	period, err := access.CurrentPeriod(sub.StartedAt, plan.PeriodLength, now)
	if err != nil {
		d.logger.Warn("failed to compute first period", zap.String("user_id", sub.UserID), zap.Error(err))
		return
	}

	key := outbound.LedgerKey{
		UserID:      sub.UserID,
		PlanID:      plan.ID,
		PeriodKey:   period.Key,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}
	if err := d.ledger.Reset(ctx, key); err != nil {
		d.logger.Warn("failed to initialise usage counter",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

func (d *Domain) publish(e events.Event) {
	if d.publisher != nil {
		d.publisher.Publish(e)
	}
}
