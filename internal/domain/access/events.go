package access

import (
	"time"

	"github.com/uniedit/quotagate/internal/infra/events"
)

// EventUsageQuotaExhausted is published when a debit consumes the last unit of a period's quota.
const EventUsageQuotaExhausted = "UsageQuotaExhausted"

// UsageQuotaExhaustedEvent carries the counter that reached its limit.
type UsageQuotaExhaustedEvent struct {
	events.BaseEvent
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	PeriodKey string    `json:"period_key"`
	Quota     int64     `json:"quota"`
	ResetsAt  time.Time `json:"resets_at"`
}

func newUsageQuotaExhaustedEvent(d *decisionState) *UsageQuotaExhaustedEvent {
	return &UsageQuotaExhaustedEvent{
		BaseEvent: events.NewBaseEvent(EventUsageQuotaExhausted, d.sub.UserID, "Subscription", d.now),
		UserID:    d.sub.UserID,
		PlanID:    d.plan.ID,
		PeriodKey: d.period.Key,
		Quota:     d.plan.Quota,
		ResetsAt:  d.period.End,
	}
}
