package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"go.uber.org/zap"
)

// Config contains circuit breaker settings for the usage ledger.
type Config struct {
	FailureThreshold    uint32
	Interval            time.Duration
	Timeout             time.Duration
	MaxHalfOpenRequests uint32
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:    5,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// StateObserver is notified on breaker state transitions.
type StateObserver func(name string, from, to gobreaker.State)

// Option configures the guarded ledger.
type Option func(*gobreaker.Settings)

// WithStateObserver registers a state transition callback.
func WithStateObserver(obs StateObserver) Option {
	return func(s *gobreaker.Settings) {
		prev := s.OnStateChange
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			if prev != nil {
				prev(name, from, to)
			}
			obs(name, from, to)
		}
	}
}

// usageLedger guards another ledger with a circuit breaker. While the breaker
// is open calls fail fast with ErrLedgerUnavailable instead of waiting on a
// backend that is known to be down.
type usageLedger struct {
	next    outbound.UsageLedgerPort
	breaker *gobreaker.CircuitBreaker[any]
}

// NewUsageLedger wraps next with a circuit breaker named name.
func NewUsageLedger(next outbound.UsageLedgerPort, name string, cfg *Config, logger *zap.Logger, opts ...Option) outbound.UsageLedgerPort {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller giving up is not a backend fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("usage ledger breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &usageLedger{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (l *usageLedger) Peek(ctx context.Context, key outbound.LedgerKey) (int64, error) {
	out, err := l.breaker.Execute(func() (any, error) {
		return l.next.Peek(ctx, key)
	})
	if err != nil {
		return 0, outbound.LedgerUnavailable("peek", err)
	}
	return out.(int64), nil
}

func (l *usageLedger) TryDebit(ctx context.Context, key outbound.LedgerKey, quota int64) (outbound.DebitResult, error) {
	out, err := l.breaker.Execute(func() (any, error) {
		return l.next.TryDebit(ctx, key, quota)
	})
	if err != nil {
		return outbound.DebitResult{}, outbound.LedgerUnavailable("try debit", err)
	}
	return out.(outbound.DebitResult), nil
}

func (l *usageLedger) Reset(ctx context.Context, key outbound.LedgerKey) error {
	_, err := l.breaker.Execute(func() (any, error) {
		return nil, l.next.Reset(ctx, key)
	})
	if err != nil {
		return outbound.LedgerUnavailable("reset", err)
	}
	return nil
}

func (l *usageLedger) Close() error {
	return l.next.Close()
}

// Compile-time check
var _ outbound.UsageLedgerPort = (*usageLedger)(nil)
