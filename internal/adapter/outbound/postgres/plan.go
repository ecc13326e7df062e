package postgres

import (
	"context"
	"errors"

	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	"gorm.io/gorm"
)

// planAdapter implements outbound.PlanDatabasePort.
type planAdapter struct {
	db *gorm.DB
}

// NewPlanAdapter creates a new plan database adapter.
func NewPlanAdapter(db *gorm.DB) outbound.PlanDatabasePort {
	return &planAdapter{db: db}
}

func (a *planAdapter) List(ctx context.Context) ([]*model.Plan, error) {
	var plans []*model.Plan
	err := a.db.WithContext(ctx).
		Order("name ASC").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (a *planAdapter) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	return a.first(ctx, "id = ?", id)
}

func (a *planAdapter) GetByName(ctx context.Context, name string) (*model.Plan, error) {
	return a.first(ctx, "name = ?", name)
}

func (a *planAdapter) first(ctx context.Context, query string, arg any) (*model.Plan, error) {
	var plan model.Plan
	err := a.db.WithContext(ctx).First(&plan, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (a *planAdapter) Create(ctx context.Context, plan *model.Plan) error {
	return translate(a.db.WithContext(ctx).Create(plan).Error)
}

func (a *planAdapter) Update(ctx context.Context, plan *model.Plan) error {
	return translate(a.db.WithContext(ctx).Save(plan).Error)
}

func (a *planAdapter) Delete(ctx context.Context, id string) error {
	return a.db.WithContext(ctx).Delete(&model.Plan{}, "id = ?", id).Error
}

// translate maps driver-level constraint violations to port errors.
// Requires gorm.Config.TranslateError.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return outbound.ErrDuplicateKey
	}
	return err
}

// Compile-time check
var _ outbound.PlanDatabasePort = (*planAdapter)(nil)
