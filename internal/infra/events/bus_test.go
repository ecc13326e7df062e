package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type testEvent struct {
	BaseEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseEvent: NewBaseEvent(eventType, "alice", "Subscription", time.Now())}
}

func TestBus_Publish(t *testing.T) {
	t.Run("dispatches to handlers in registration order", func(t *testing.T) {
		bus := NewBus(zap.NewNop())

		var calls []string
		bus.Register(NewHandlerFunc([]string{"A"}, func(Event) error {
			calls = append(calls, "first")
			return nil
		}))
		bus.Register(NewHandlerFunc([]string{"A", "B"}, func(e Event) error {
			calls = append(calls, "second:"+e.EventType())
			return nil
		}))

		bus.Publish(newTestEvent("A"))
		bus.Publish(newTestEvent("B"))

		assert.Equal(t, []string{"first", "second:A", "second:B"}, calls)
	})

	t.Run("handler failure does not stop others", func(t *testing.T) {
		bus := NewBus(zap.NewNop())

		called := false
		bus.Register(NewHandlerFunc([]string{"A"}, func(Event) error {
			return errors.New("boom")
		}))
		bus.Register(NewHandlerFunc([]string{"A"}, func(Event) error {
			called = true
			return nil
		}))

		bus.Publish(newTestEvent("A"))
		assert.True(t, called)
	})

	t.Run("no handlers", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		assert.NotPanics(t, func() { bus.Publish(newTestEvent("unknown")) })
	})
}

func TestBaseEvent(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewBaseEvent("UsageQuotaExhausted", "alice", "Subscription", at)

	assert.NotEmpty(t, e.EventID().String())
	assert.Equal(t, "UsageQuotaExhausted", e.EventType())
	assert.Equal(t, at, e.OccurredAt())
	assert.Equal(t, "alice", e.AggregateID())
	assert.Equal(t, "Subscription", e.AggregateType())
}
