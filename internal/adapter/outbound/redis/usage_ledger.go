package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniedit/quotagate/internal/port/outbound"
)

const usageKeyPrefix = "quotagate:usage:"

// counterRetention keeps a counter readable for a while after its period ends.
const counterRetention = 24 * time.Hour

// debitScript increments KEYS[1] only while it is below ARGV[1].
// Every successful debit refreshes the expiry to ARGV[2] milliseconds.
var debitScript = redis.NewScript(`
	local key = KEYS[1]
	local quota = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local used = tonumber(redis.call('GET', key) or '0')
	if used >= quota then
		return {0, used}
	end

	used = redis.call('INCR', key)
	redis.call('PEXPIRE', key, ttl)
	return {1, used}
`)

// usageLedger implements outbound.UsageLedgerPort on Redis counters.
type usageLedger struct {
	client *redis.Client
}

// NewUsageLedger creates a new Redis-backed usage ledger.
func NewUsageLedger(client *redis.Client) outbound.UsageLedgerPort {
	return &usageLedger{client: client}
}

func (l *usageLedger) counterKey(key outbound.LedgerKey) string {
	return usageKeyPrefix + key.String()
}

// ttl is the time until the period ends plus the retention window.
func ttl(key outbound.LedgerKey) time.Duration {
	d := time.Until(key.PeriodEnd) + counterRetention
	if d < counterRetention {
		d = counterRetention
	}
	return d
}

func (l *usageLedger) Peek(ctx context.Context, key outbound.LedgerKey) (int64, error) {
	val, err := l.client.Get(ctx, l.counterKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, outbound.LedgerUnavailable("peek", err)
	}
	return val, nil
}

func (l *usageLedger) TryDebit(ctx context.Context, key outbound.LedgerKey, quota int64) (outbound.DebitResult, error) {
	result, err := debitScript.Run(ctx, l.client, []string{l.counterKey(key)},
		quota,
		ttl(key).Milliseconds(),
	).Slice()
	if err != nil {
		return outbound.DebitResult{}, outbound.LedgerUnavailable("try debit", err)
	}
	if len(result) != 2 {
		return outbound.DebitResult{}, outbound.LedgerUnavailable("try debit",
			fmt.Errorf("unexpected script reply %v", result))
	}

	allowed, _ := strconv.ParseInt(fmt.Sprint(result[0]), 10, 64)
	used, err := strconv.ParseInt(fmt.Sprint(result[1]), 10, 64)
	if err != nil {
		return outbound.DebitResult{}, outbound.LedgerUnavailable("try debit", err)
	}
	return outbound.DebitResult{Allowed: allowed == 1, Used: used}, nil
}

func (l *usageLedger) Reset(ctx context.Context, key outbound.LedgerKey) error {
	if err := l.client.SetNX(ctx, l.counterKey(key), 0, ttl(key)).Err(); err != nil {
		return outbound.LedgerUnavailable("reset", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (l *usageLedger) Close() error {
	return nil
}

// Compile-time check
var _ outbound.UsageLedgerPort = (*usageLedger)(nil)
