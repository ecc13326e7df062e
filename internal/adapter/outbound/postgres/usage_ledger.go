package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageLedger implements outbound.UsageLedgerPort on the usage_counters table.
//
// A debit is a conditional UPDATE guarded by "used < quota" inside a
// transaction; the row lock it takes serialises debits on the same key while
// other keys proceed in parallel.
type usageLedger struct {
	db *gorm.DB
}

// NewUsageLedger creates a new database-backed usage ledger.
func NewUsageLedger(db *gorm.DB) outbound.UsageLedgerPort {
	return &usageLedger{db: db}
}

func keyWhere(tx *gorm.DB, key outbound.LedgerKey) *gorm.DB {
	return tx.Where("user_id = ? AND plan_id = ? AND period_key = ?", key.UserID, key.PlanID, key.PeriodKey)
}

func (l *usageLedger) Peek(ctx context.Context, key outbound.LedgerKey) (int64, error) {
	used, err := l.read(l.db.WithContext(ctx), key)
	if err != nil {
		return 0, outbound.LedgerUnavailable("peek", err)
	}
	return used, nil
}

func (l *usageLedger) TryDebit(ctx context.Context, key outbound.LedgerKey, quota int64) (outbound.DebitResult, error) {
	var res outbound.DebitResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.open(tx, key); err != nil {
			return err
		}

		upd := keyWhere(tx.Model(&model.UsageCounter{}), key).
			Where("used < ?", quota).
			Updates(map[string]any{
				"used":       gorm.Expr("used + ?", 1),
				"updated_at": time.Now().UTC(),
			})
		if upd.Error != nil {
			return upd.Error
		}

		used, err := l.read(tx, key)
		if err != nil {
			return err
		}
		res = outbound.DebitResult{Allowed: upd.RowsAffected == 1, Used: used}
		return nil
	})
	if err != nil {
		return outbound.DebitResult{}, outbound.LedgerUnavailable("try debit", err)
	}
	return res, nil
}

func (l *usageLedger) Reset(ctx context.Context, key outbound.LedgerKey) error {
	if err := l.open(l.db.WithContext(ctx), key); err != nil {
		return outbound.LedgerUnavailable("reset", err)
	}
	return nil
}

// Close is a no-op; the connection pool is owned by the caller.
func (l *usageLedger) Close() error {
	return nil
}

// open inserts a zero counter unless the row already exists.
func (l *usageLedger) open(tx *gorm.DB, key outbound.LedgerKey) error {
	now := time.Now().UTC()
	counter := &model.UsageCounter{
		UserID:      key.UserID,
		PlanID:      key.PlanID,
		PeriodKey:   key.PeriodKey,
		PeriodStart: key.PeriodStart,
		PeriodEnd:   key.PeriodEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(counter).Error
}

func (l *usageLedger) read(tx *gorm.DB, key outbound.LedgerKey) (int64, error) {
	var counter model.UsageCounter
	err := keyWhere(tx, key).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Used, nil
}

// Compile-time check
var _ outbound.UsageLedgerPort = (*usageLedger)(nil)
