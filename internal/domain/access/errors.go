package access

import "errors"

// Domain errors for access decisions.
var (
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidPeriod is returned when no billing period contains the given instant.
	ErrInvalidPeriod = errors.New("invalid billing period")

	// Resolution errors: collaborator data could not be confidently resolved.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidPlan          = errors.New("plan record is invalid")
)
