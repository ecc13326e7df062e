package billing

import "errors"

// Domain errors for billing.
var (
	ErrInvalidRequest = errors.New("invalid request")

	// Plan errors
	ErrPlanNotFound = errors.New("plan not found")
	ErrPlanExists   = errors.New("plan with this name already exists")
	ErrInvalidPlan  = errors.New("invalid plan")
	ErrPlanInUse    = errors.New("plan has active subscriptions")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
	ErrSamePlan             = errors.New("already subscribed to this plan")
)
