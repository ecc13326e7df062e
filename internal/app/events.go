package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/uniedit/quotagate/internal/domain/access"
	"github.com/uniedit/quotagate/internal/domain/billing"
	"github.com/uniedit/quotagate/internal/infra/events"
	"github.com/uniedit/quotagate/internal/utils/metrics"
)

// registerEventHandlers logs and counts the domain events.
func registerEventHandlers(bus *events.Bus, log *zap.Logger, m *metrics.Metrics) {
	bus.Register(events.NewHandlerFunc(
		[]string{access.EventUsageQuotaExhausted, billing.EventSubscriptionChanged},
		func(e events.Event) error {
			m.RecordEvent(e.EventType())

			switch ev := e.(type) {
			case *access.UsageQuotaExhaustedEvent:
				log.Info("usage quota exhausted",
					zap.String("event_id", ev.EventID().String()),
					zap.String("user_id", ev.UserID),
					zap.String("plan_id", ev.PlanID),
					zap.String("period_key", ev.PeriodKey),
					zap.Int64("quota", ev.Quota),
					zap.Time("resets_at", ev.ResetsAt),
				)
			case *billing.SubscriptionChangedEvent:
				log.Info("subscription changed",
					zap.String("event_id", ev.EventID().String()),
					zap.String("user_id", ev.UserID),
					zap.String("plan_id", ev.PlanID),
					zap.String("previous_plan_id", ev.PreviousPlanID),
					zap.Time("started_at", ev.StartedAt),
				)
			default:
				return fmt.Errorf("unexpected event payload %T", e)
			}
			return nil
		},
	))
}
