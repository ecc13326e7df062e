package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"github.com/uniedit/quotagate/internal/shared/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// plansTableSQLite replaces the text[] column of the Postgres schema.
const plansTableSQLite = `CREATE TABLE plans (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	operations TEXT NOT NULL,
	quota INTEGER NOT NULL,
	period_length INTEGER NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
)`

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Options())
	require.NoError(t, err)

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(plansTableSQLite).Error)
	require.NoError(t, db.AutoMigrate(&model.Subscription{}, &model.UsageCounter{}))
	return db
}

func seedPlan(t *testing.T, db *gorm.DB, id, name string) *model.Plan {
	t.Helper()
	plan := &model.Plan{
		ID:           id,
		Name:         name,
		Operations:   pq.StringArray{"service1", "service2"},
		Quota:        3,
		PeriodLength: model.DefaultPeriodLength,
	}
	require.NoError(t, NewPlanAdapter(db).Create(context.Background(), plan))
	return plan
}

func TestPlanAdapter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlanAdapter(db)
	ctx := context.Background()

	seedPlan(t, db, "pro", "Pro")
	seedPlan(t, db, "basic", "Basic")

	t.Run("get by id", func(t *testing.T) {
		plan, err := repo.GetByID(ctx, "pro")
		require.NoError(t, err)
		require.NotNil(t, plan)
		assert.Equal(t, "Pro", plan.Name)
		assert.Equal(t, pq.StringArray{"service1", "service2"}, plan.Operations)
		assert.Equal(t, model.DefaultPeriodLength, plan.PeriodLength)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		plan, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, plan)

		plan, err = repo.GetByName(ctx, "Nope")
		require.NoError(t, err)
		assert.Nil(t, plan)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		plans, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "Basic", plans[0].Name)
		assert.Equal(t, "Pro", plans[1].Name)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.Create(ctx, &model.Plan{ID: "pro2", Name: "Pro", Operations: pq.StringArray{"x"}, Quota: 1, PeriodLength: time.Hour})
		assert.ErrorIs(t, err, outbound.ErrDuplicateKey)
	})

	t.Run("update", func(t *testing.T) {
		plan, err := repo.GetByName(ctx, "Basic")
		require.NoError(t, err)
		plan.Quota = 42
		plan.Operations = pq.StringArray{"service3"}
		require.NoError(t, repo.Update(ctx, plan))

		reloaded, err := repo.GetByID(ctx, "basic")
		require.NoError(t, err)
		assert.Equal(t, int64(42), reloaded.Quota)
		assert.Equal(t, pq.StringArray{"service3"}, reloaded.Operations)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "basic"))
		plan, err := repo.GetByID(ctx, "basic")
		require.NoError(t, err)
		assert.Nil(t, plan)
	})
}

func TestSubscriptionAdapter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionAdapter(db)
	ctx := context.Background()

	seedPlan(t, db, "pro", "Pro")
	seedPlan(t, db, "basic", "Basic")

	started := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	sub := &model.Subscription{ID: uuid.New(), UserID: "alice", PlanID: "pro", StartedAt: started}
	require.NoError(t, repo.Create(ctx, sub))

	t.Run("get by user", func(t *testing.T) {
		got, err := repo.GetByUserID(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sub.ID, got.ID)
		assert.True(t, started.Equal(got.StartedAt))
		assert.Nil(t, got.Plan)
	})

	t.Run("with plan", func(t *testing.T) {
		got, err := repo.GetByUserIDWithPlan(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got.Plan)
		assert.Equal(t, "Pro", got.Plan.Name)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		got, err := repo.GetByUserID(ctx, "bob")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("one subscription per user", func(t *testing.T) {
		err := repo.Create(ctx, &model.Subscription{ID: uuid.New(), UserID: "alice", PlanID: "basic", StartedAt: started})
		assert.ErrorIs(t, err, outbound.ErrDuplicateKey)
	})

	t.Run("count and update", func(t *testing.T) {
		n, err := repo.CountByPlanID(ctx, "pro")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.GetByUserID(ctx, "alice")
		require.NoError(t, err)
		got.PlanID = "basic"
		require.NoError(t, repo.Update(ctx, got))

		n, err = repo.CountByPlanID(ctx, "pro")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func ledgerKey(user string) outbound.LedgerKey {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return outbound.LedgerKey{
		UserID:      user,
		PlanID:      "basic",
		PeriodKey:   "2024-01-01T00:00:00Z/2592000",
		PeriodStart: start,
		PeriodEnd:   start.Add(model.DefaultPeriodLength),
	}
}

func TestUsageLedger_Debit(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewUsageLedger(db)
	ctx := context.Background()
	key := ledgerKey("alice")

	used, err := ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, used)

	for i := int64(1); i <= 2; i++ {
		res, err := ledger.TryDebit(ctx, key, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.Used)
	}

	res, err := ledger.TryDebit(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(2), res.Used)

	// Reset never clobbers an existing counter.
	require.NoError(t, ledger.Reset(ctx, key))
	used, err = ledger.Peek(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)

	other := ledgerKey("bob")
	require.NoError(t, ledger.Reset(ctx, other))
	used, err = ledger.Peek(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, used)

	require.NoError(t, ledger.Close())
}

func TestUsageLedger_ConcurrentBurst(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewUsageLedger(db)
	ctx := context.Background()
	key := ledgerKey("carol")
	const quota = 10

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
	db := setupTestDB(t)
	ledger := NewUsageLedger(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = ledger.TryDebit(context.Background(), ledgerKey("dave"), 1)
	assert.ErrorIs(t, err, outbound.ErrLedgerUnavailable)

	_, err = ledger.Peek(context.Background(), ledgerKey("dave"))
	assert.ErrorIs(t, err, outbound.ErrLedgerUnavailable)
}
