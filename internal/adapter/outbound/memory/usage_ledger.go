package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/uniedit/quotagate/internal/port/outbound"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

type shard struct {
	mu       sync.Mutex
	counters map[string]int64
}

// usageLedger implements outbound.UsageLedgerPort in process memory.
// Keys are spread over independently locked shards, so contention is
// limited to keys that hash to the same shard.
type usageLedger struct {
	shards []*shard
	closed atomic.Bool
}

// NewUsageLedger creates an in-memory usage ledger with n shards.
func NewUsageLedger(n int) outbound.UsageLedgerPort {
	if n <= 0 {
		n = DefaultShards
	}
	l := &usageLedger{shards: make([]*shard, n)}
	for i := range l.shards {
		l.shards[i] = &shard{counters: make(map[string]int64)}
	}
	return l
}

func (l *usageLedger) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

func (l *usageLedger) Peek(ctx context.Context, key outbound.LedgerKey) (int64, error) {
	if err := l.check(ctx, "peek"); err != nil {
		return 0, err
	}

	k := key.String()
	s := l.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[k], nil
}

func (l *usageLedger) TryDebit(ctx context.Context, key outbound.LedgerKey, quota int64) (outbound.DebitResult, error) {
	if err := l.check(ctx, "try debit"); err != nil {
		return outbound.DebitResult{}, err
	}

	k := key.String()
	s := l.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.counters[k]
	if used >= quota {
		return outbound.DebitResult{Allowed: false, Used: used}, nil
	}
	used++
	s.counters[k] = used
	return outbound.DebitResult{Allowed: true, Used: used}, nil
}

func (l *usageLedger) Reset(ctx context.Context, key outbound.LedgerKey) error {
	if err := l.check(ctx, "reset"); err != nil {
		return err
	}

	k := key.String()
	s := l.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[k]; !ok {
		s.counters[k] = 0
	}
	return nil
}

func (l *usageLedger) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *usageLedger) check(ctx context.Context, op string) error {
	if l.closed.Load() {
		return outbound.LedgerUnavailable(op, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return outbound.LedgerUnavailable(op, err)
	}
	return nil
}

// Compile-time check
var _ outbound.UsageLedgerPort = (*usageLedger)(nil)
