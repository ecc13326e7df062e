package model

import "time"

// DenyReason explains why an access decision was negative.
type DenyReason string

const (
	DenyReasonNone                  DenyReason = ""
	DenyReasonNoSubscription        DenyReason = "no_subscription"
	DenyReasonOperationNotPermitted DenyReason = "operation_not_permitted"
	DenyReasonQuotaExceeded         DenyReason = "quota_exceeded"
	DenyReasonResolutionError       DenyReason = "resolution_error"
	DenyReasonLedgerUnavailable     DenyReason = "ledger_unavailable"
)

// String returns the string representation of the reason.
func (r DenyReason) String() string {
	return string(r)
}

// IsPolicy reports whether the denial is an expected, user-visible policy outcome.
func (r DenyReason) IsPolicy() bool {
	switch r {
	case DenyReasonNoSubscription, DenyReasonOperationNotPermitted, DenyReasonQuotaExceeded:
		return true
	}
	return false
}

// IsTransient reports whether the denial stems from an infrastructure or data
// problem that a caller may retry with backoff.
func (r DenyReason) IsTransient() bool {
	return r == DenyReasonResolutionError || r == DenyReasonLedgerUnavailable
}

// Period is one billing-period instance: the half-open interval [Start, End).
type Period struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Reason    DenyReason `json:"reason,omitempty"`
	UserID    string     `json:"user_id"`
	Operation string     `json:"operation"`
	PlanID    string     `json:"plan_id,omitempty"`

	// Counters are populated once the ledger has been consulted.
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`

	Period Period `json:"period"`

	// Err is the underlying cause of a transient denial. Never serialized.
	Err error `json:"-"`
}

// Outcome returns "allow" or "deny" for logs and metrics.
func (d *Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}
