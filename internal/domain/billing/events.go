package billing

import (
	"time"

	"github.com/uniedit/quotagate/internal/infra/events"
	"github.com/uniedit/quotagate/internal/model"
)

// EventSubscriptionChanged is published when a user subscribes or switches plan.
const EventSubscriptionChanged = "SubscriptionChanged"

// SubscriptionChangedEvent describes a subscription transition.
// PreviousPlanID is empty for a new subscription.
type SubscriptionChangedEvent struct {
	events.BaseEvent
	UserID         string    `json:"user_id"`
	PlanID         string    `json:"plan_id"`
	PreviousPlanID string    `json:"previous_plan_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

func newSubscriptionChangedEvent(sub *model.Subscription, previousPlanID string) *SubscriptionChangedEvent {
	return &SubscriptionChangedEvent{
		BaseEvent:      events.NewBaseEvent(EventSubscriptionChanged, sub.UserID, "Subscription", sub.UpdatedAt),
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		PreviousPlanID: previousPlanID,
		StartedAt:      sub.StartedAt,
	}
}
