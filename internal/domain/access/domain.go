package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uniedit/quotagate/internal/infra/events"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"go.uber.org/zap"
)

// AccessDomain defines the access decision service interface.
type AccessDomain interface {
	// Decide answers whether userID may perform operation at now and, when it
	// may, debits one unit of the user's quota. It never returns an error:
	// every failure is expressed as a denial.
	Decide(ctx context.Context, userID, operation string, now time.Time) *model.Decision

	// GetUsage returns the user's consumption in the period containing now
	// without mutating any counter.
	GetUsage(ctx context.Context, userID string, now time.Time) (*model.UsageStatus, error)
}

// DecisionObserver receives every completed decision.
type DecisionObserver interface {
	ObserveDecision(d *model.Decision, elapsed time.Duration)
}

// Config holds access domain configuration.
type Config struct {
	// LookupTimeout bounds each plan or subscription lookup.
	LookupTimeout time.Duration
	// LedgerTimeout bounds each ledger operation.
	LedgerTimeout time.Duration
	// PlanCacheTTL is how long resolved plans stay in the plan cache.
	PlanCacheTTL time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		LookupTimeout: 2 * time.Second,
		LedgerTimeout: 2 * time.Second,
		PlanCacheTTL:  time.Minute,
	}
}

// Option configures optional collaborators of the domain.
type Option func(*Domain)

// WithPlanCache serves plan lookups from cache before hitting the database.
func WithPlanCache(cache outbound.PlanCachePort) Option {
	return func(d *Domain) { d.planCache = cache }
}

// WithEventPublisher sets the publisher for quota events.
func WithEventPublisher(p events.Publisher) Option {
	return func(d *Domain) { d.publisher = p }
}

// WithDecisionObserver registers an observer, typically metrics.
func WithDecisionObserver(o DecisionObserver) Option {
	return func(d *Domain) { d.observer = o }
}

// Domain implements access decisions over the plan catalog, the
// subscription directory and the usage ledger. It only reads plans and
// subscriptions; counters are mutated exclusively through the ledger.
type Domain struct {
	planDB         outbound.PlanDatabasePort
	subscriptionDB outbound.SubscriptionDatabasePort
	ledger         outbound.UsageLedgerPort
	planCache      outbound.PlanCachePort
	publisher      events.Publisher
	observer       DecisionObserver
	cfg            *Config
	logger         *zap.Logger
}

// NewAccessDomain creates a new access domain service.
func NewAccessDomain(
	planDB outbound.PlanDatabasePort,
	subscriptionDB outbound.SubscriptionDatabasePort,
	ledger outbound.UsageLedgerPort,
	cfg *Config,
	logger *zap.Logger,
	opts ...Option,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := &Domain{
		planDB:         planDB,
		subscriptionDB: subscriptionDB,
		ledger:         ledger,
		cfg:            cfg,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compile-time interface check
var _ AccessDomain = (*Domain)(nil)

// decisionState is what a decision has resolved so far.
type decisionState struct {
	now    time.Time
	sub    *model.Subscription
	plan   *model.Plan
	period model.Period
}

// --- Decision ---

func (d *Domain) Decide(ctx context.Context, userID, operation string, now time.Time) *model.Decision {
	started := time.Now()
	dec := d.decide(ctx, userID, operation, now)
	d.report(dec, time.Since(started))
	return dec
}

func (d *Domain) decide(ctx context.Context, userID, operation string, now time.Time) *model.Decision {
	dec := &model.Decision{UserID: userID, Operation: operation}

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(operation) == "" {
		return deny(dec, model.DenyReasonResolutionError, ErrInvalidRequest)
	}

	sub, err := d.lookupSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return deny(dec, model.DenyReasonNoSubscription, nil)
		}
		return deny(dec, model.DenyReasonResolutionError, err)
	}
	dec.PlanID = sub.PlanID

	plan, err := d.lookupPlan(ctx, sub.PlanID)
	if err != nil {
		return deny(dec, model.DenyReasonResolutionError, err)
	}
	if err := validatePlan(plan); err != nil {
		return deny(dec, model.DenyReasonResolutionError, err)
	}
	dec.Limit = plan.Quota

	// Checked before any usage lookup: an excluded operation never touches the ledger.
	if !plan.Permits(operation) {
		return deny(dec, model.DenyReasonOperationNotPermitted, nil)
	}

	period, err := CurrentPeriod(sub.StartedAt, plan.PeriodLength, now)
	if err != nil {
		return deny(dec, model.DenyReasonResolutionError, err)
	}
	dec.Period = period

	state := &decisionState{now: now, sub: sub, plan: plan, period: period}

	lctx, cancel := context.WithTimeout(ctx, d.cfg.LedgerTimeout)
	defer cancel()

	res, err := d.ledger.TryDebit(lctx, ledgerKey(state), plan.Quota)
	if err != nil {
		return deny(dec, model.DenyReasonLedgerUnavailable, outbound.LedgerUnavailable("try debit", err))
	}

	dec.Used = res.Used
	if !res.Allowed {
		return deny(dec, model.DenyReasonQuotaExceeded, nil)
	}

	dec.Allowed = true
	dec.Remaining = plan.Quota - res.Used

	if res.Used == plan.Quota && d.publisher != nil {
		d.publisher.Publish(newUsageQuotaExhaustedEvent(state))
	}
	return dec
}

func deny(dec *model.Decision, reason model.DenyReason, cause error) *model.Decision {
	dec.Allowed = false
	dec.Reason = reason
	dec.Remaining = 0
	dec.Err = cause
	return dec
}

func (d *Domain) report(dec *model.Decision, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveDecision(dec, elapsed)
	}

	fields := []zap.Field{
		zap.String("user_id", dec.UserID),
		zap.String("operation", dec.Operation),
		zap.String("plan_id", dec.PlanID),
		zap.String("outcome", dec.Outcome()),
		zap.Int64("used", dec.Used),
		zap.Int64("limit", dec.Limit),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case dec.Allowed:
		d.logger.Debug("access allowed", fields...)
	case dec.Reason.IsTransient():
		d.logger.Warn("access denied", append(fields, zap.String("reason", dec.Reason.String()), zap.Error(dec.Err))...)
	default:
		d.logger.Info("access denied", append(fields, zap.String("reason", dec.Reason.String()))...)
	}
}

// --- Status ---

func (d *Domain) GetUsage(ctx context.Context, userID string, now time.Time) (*model.UsageStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}

	sub, err := d.lookupSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := d.lookupPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	period, err := CurrentPeriod(sub.StartedAt, plan.PeriodLength, now)
	if err != nil {
		return nil, err
	}

	state := &decisionState{now: now, sub: sub, plan: plan, period: period}

	lctx, cancel := context.WithTimeout(ctx, d.cfg.LedgerTimeout)
	defer cancel()

	used, err := d.ledger.Peek(lctx, ledgerKey(state))
	if err != nil {
		return nil, outbound.LedgerUnavailable("peek", err)
	}

	return &model.UsageStatus{
		UserID:      sub.UserID,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		Operations:  []string(plan.Operations),
		Used:        used,
		Limit:       plan.Quota,
		Remaining:   max(0, plan.Quota-used),
		PeriodKey:   period.Key,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}, nil
}

// --- Resolution ---

func (d *Domain) lookupSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	lctx, cancel := context.WithTimeout(ctx, d.cfg.LookupTimeout)
	defer cancel()

	sub, err := d.subscriptionDB.GetByUserID(lctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription for %q: %w", userID, err)
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (d *Domain) lookupPlan(ctx context.Context, planID string) (*model.Plan, error) {
	lctx, cancel := context.WithTimeout(ctx, d.cfg.LookupTimeout)
	defer cancel()

	if d.planCache != nil {
		plan, err := d.planCache.GetPlan(lctx, planID)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, outbound.ErrCacheMiss) {
			d.logger.Warn("plan cache read failed, using DB", zap.String("plan_id", planID), zap.Error(err))
		}
	}

	plan, err := d.planDB.GetByID(lctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %q: %w", planID, err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
	}

	if d.planCache != nil {
		if err := d.planCache.SetPlan(lctx, plan, d.cfg.PlanCacheTTL); err != nil {
			d.logger.Warn("plan cache write failed", zap.String("plan_id", planID), zap.Error(err))
		}
	}
	return plan, nil
}

func validatePlan(p *model.Plan) error {
	switch {
	case p.Quota <= 0:
		return fmt.Errorf("%w: plan %q has quota %d", ErrInvalidPlan, p.ID, p.Quota)
	case len(p.Operations) == 0:
		return fmt.Errorf("%w: plan %q permits no operations", ErrInvalidPlan, p.ID)
	case p.PeriodLength <= 0:
		return fmt.Errorf("%w: plan %q has period length %s", ErrInvalidPlan, p.ID, p.PeriodLength)
	}
	return nil
}

func ledgerKey(s *decisionState) outbound.LedgerKey {
	return outbound.LedgerKey{
		UserID:      s.sub.UserID,
		PlanID:      s.plan.ID,
		PeriodKey:   s.period.Key,
		PeriodStart: s.period.Start,
		PeriodEnd:   s.period.End,
	}
}
