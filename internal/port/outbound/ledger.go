package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLedgerUnavailable is returned (wrapped) by every ledger adapter when the
// backing store cannot complete an operation.
var ErrLedgerUnavailable = errors.New("usage ledger unavailable")

// LedgerKey identifies one usage counter.
type LedgerKey struct {
	UserID    string
	PlanID    string
	PeriodKey string

	// Period bounds, used by adapters for expiry and bookkeeping only.
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// String returns the canonical form of the key. User and plan ids are
// length-prefixed, so ids containing ':' cannot collide.
func (k LedgerKey) String() string {
	return fmt.Sprintf("%d:%s:%d:%s:%s", len(k.UserID), k.UserID, len(k.PlanID), k.PlanID, k.PeriodKey)
}

// DebitResult is the outcome of TryDebit.
// Allowed carries the post-increment count, Denied the unchanged current count.
type DebitResult struct {
	Allowed bool
	Used    int64
}

// UsageLedgerPort owns every usage counter mutation.
type UsageLedgerPort interface {
	// Peek returns the current count for key, 0 if never written.
	Peek(ctx context.Context, key LedgerKey) (int64, error)

	// TryDebit increments the counter iff it is below quota, atomically.
	TryDebit(ctx context.Context, key LedgerKey, quota int64) (DebitResult, error)

	// Reset initialises the counter to 0 if it has never been written.
	// Calling it on an existing counter is a no-op.
	Reset(ctx context.Context, key LedgerKey) error

	// Close releases resources held by the ledger.
	Close() error
}

// LedgerUnavailable wraps err so that errors.Is(err, ErrLedgerUnavailable) holds.
func LedgerUnavailable(op string, err error) error {
	if err == nil || errors.Is(err, ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrLedgerUnavailable, err)
}
