package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func ledgerKey(user string) outbound.LedgerKey {
	start := time.Now().UTC().Truncate(time.Hour)
	return outbound.LedgerKey{
		UserID:      user,
		PlanID:      "basic",
		PeriodKey:   start.Format(time.RFC3339Nano) + "/3600",
		PeriodStart: start,
		PeriodEnd:   start.Add(time.Hour),
	}
}

func TestUsageLedger_Debit(t *testing.T) {
	mr, client := setupRedis(t)
	ledger := NewUsageLedger(client)
	ctx := context.Background()
	key := ledgerKey("alice")

	used, err := ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, used)

	for i := int64(1); i <= 3; i++ {
		res, err := ledger.TryDebit(ctx, key, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.Used)
	}

	res, err := ledger.TryDebit(ctx, key, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(3), res.Used)

	fullKey := usageKeyPrefix + key.String()
	assert.True(t, mr.Exists(fullKey))
	assert.Greater(t, mr.TTL(fullKey), counterRetention)

	require.NoError(t, ledger.Close())
}

func TestUsageLedger_Reset(t *testing.T) {
	_, client := setupRedis(t)
	ledger := NewUsageLedger(client)
	ctx := context.Background()
	key := ledgerKey("bob")

	require.NoError(t, ledger.Reset(ctx, key))
	used, err := ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, used)

	_, err = ledger.TryDebit(ctx, key, 5)
	require.NoError(t, err)
	require.NoError(t, ledger.Reset(ctx, key))

	used, err = ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}

func TestUsageLedger_DebitRefreshesExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	ledger := NewUsageLedger(client)
	ctx := context.Background()
	key := ledgerKey("frank")
	fullKey := usageKeyPrefix + key.String()

	require.NoError(t, ledger.Reset(ctx, key))
	mr.SetTTL(fullKey, time.Minute)

	res, err := ledger.TryDebit(ctx, key, 5)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Greater(t, mr.TTL(fullKey), counterRetention)

	// A denied debit leaves the counter untouched, expiry included.
	mr.SetTTL(fullKey, time.Minute)
	res, err = ledger.TryDebit(ctx, key, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	assert.Equal(t, time.Minute, mr.TTL(fullKey))
}

func TestUsageLedger_ExpiredPeriodKeepsRetention(t *testing.T) {
	mr, client := setupRedis(t)
	ledger := NewUsageLedger(client)

	key := ledgerKey("carol")
	key.PeriodStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	key.PeriodEnd = key.PeriodStart.Add(time.Hour)

	_, err := ledger.TryDebit(context.Background(), key, 1)
	require.NoError(t, err)
	assert.Equal(t, counterRetention, mr.TTL(usageKeyPrefix+key.String()))
}

func TestUsageLedger_ConcurrentBurst(t *testing.T) {
	_, client := setupRedis(t)
	ledger := NewUsageLedger(client)
	ctx := context.Background()
	key := ledgerKey("dave")
	const quota = 20

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 2*quota; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.TryDebit(ctx, key, quota)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(quota), allowed.Load())
	used, err := ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(quota), used)
}

func TestUsageLedger_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	ledger := NewUsageLedger(client)
	mr.Close()

	_, err := ledger.TryDebit(context.Background(), ledgerKey("erin"), 1)
	assert.ErrorIs(t, err, outbound.ErrLedgerUnavailable)

	_, err = ledger.Peek(context.Background(), ledgerKey("erin"))
	assert.ErrorIs(t, err, outbound.ErrLedgerUnavailable)

	err = ledger.Reset(context.Background(), ledgerKey("erin"))
	assert.ErrorIs(t, err, outbound.ErrLedgerUnavailable)
}

func TestPlanCache(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewPlanCache(client)
	ctx := context.Background()

	_, err := cache.GetPlan(ctx, "pro")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	plan := &model.Plan{
		ID:           "pro",
		Name:         "Pro",
		Operations:   pq.StringArray{"service1", "service2"},
		Quota:        100,
		PeriodLength: 30 * 24 * time.Hour,
	}
	require.NoError(t, cache.SetPlan(ctx, plan, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(planKeyPrefix+"pro"))

	got, err := cache.GetPlan(ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, plan.Name, got.Name)
	assert.Equal(t, plan.Operations, got.Operations)
	assert.Equal(t, plan.Quota, got.Quota)
	assert.Equal(t, plan.PeriodLength, got.PeriodLength)

	require.NoError(t, cache.InvalidatePlan(ctx, "pro"))
	_, err = cache.GetPlan(ctx, "pro")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	mr.FastForward(time.Minute)
	require.NoError(t, cache.SetPlan(ctx, plan, time.Second))
	mr.FastForward(2 * time.Second)
	_, err = cache.GetPlan(ctx, "pro")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}
