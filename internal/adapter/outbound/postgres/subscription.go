package postgres

import (
	"context"
	"errors"

	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"gorm.io/gorm"
)

// subscriptionAdapter implements outbound.SubscriptionDatabasePort.
type subscriptionAdapter struct {
	db *gorm.DB
}

// NewSubscriptionAdapter creates a new subscription database adapter.
func NewSubscriptionAdapter(db *gorm.DB) outbound.SubscriptionDatabasePort {
	return &subscriptionAdapter{db: db}
}

func (a *subscriptionAdapter) Create(ctx context.Context, sub *model.Subscription) error {
	return translate(a.db.WithContext(ctx).Omit("Plan").Create(sub).Error)
}

func (a *subscriptionAdapter) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := a.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (a *subscriptionAdapter) GetByUserIDWithPlan(ctx context.Context, userID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := a.db.WithContext(ctx).
		Preload("Plan").
		First(&sub, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (a *subscriptionAdapter) Update(ctx context.Context, sub *model.Subscription) error {
	return a.db.WithContext(ctx).Omit("Plan").Save(sub).Error
}

func (a *subscriptionAdapter) CountByPlanID(ctx context.Context, planID string) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("plan_id = ?", planID).
		Count(&n).Error
	return n, err
}

// Compile-time check
var _ outbound.SubscriptionDatabasePort = (*subscriptionAdapter)(nil)
