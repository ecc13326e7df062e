package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DefaultPeriodLength is the billing period used when a plan does not set one.
const DefaultPeriodLength = 30 * 24 * time.Hour

// Plan represents a subscription plan.
type Plan struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"uniqueIndex;not null"`
	Description  string         `json:"description"`
	Operations   pq.StringArray `json:"operations" gorm:"type:text[];not null"`
	Quota        int64          `json:"quota" gorm:"not null"`
	PeriodLength time.Duration  `json:"period_length" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Plan) TableName() string {
	return "plans"
}

// Permits reports whether the operation is included in the plan.
func (p *Plan) Permits(operation string) bool {
	return slices.Contains(p.Operations, operation)
}

// PlanResponse represents plan information for API responses.
type PlanResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Operations   []string `json:"operations"`
	Quota        int64    `json:"quota"`
	PeriodLength string   `json:"period_length"`
}

// ToResponse converts Plan to PlanResponse.
func (p *Plan) ToResponse() *PlanResponse {
	return &PlanResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Operations:   []string(p.Operations),
		Quota:        p.Quota,
		PeriodLength: p.PeriodLength.String(),
	}
}

// Subscription binds a user to a plan, anchored at StartedAt.
type Subscription struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex;not null"`
	PlanID    string    `json:"plan_id" gorm:"not null;index"`
	StartedAt time.Time `json:"started_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Plan *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

// TableName returns the database table name.
func (Subscription) TableName() string {
	return "subscriptions"
}

// SubscriptionResponse represents subscription information for API responses.
type SubscriptionResponse struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	PlanID    string        `json:"plan_id"`
	StartedAt time.Time     `json:"started_at"`
	Plan      *PlanResponse `json:"plan,omitempty"`
}

// ToResponse converts Subscription to SubscriptionResponse.
func (s *Subscription) ToResponse() *SubscriptionResponse {
	resp := &SubscriptionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		PlanID:    s.PlanID,
		StartedAt: s.StartedAt,
	}
	if s.Plan != nil {
		resp.Plan = s.Plan.ToResponse()
	}
	return resp
}

// UsageCounter is the persisted usage count for one (user, plan, period).
type UsageCounter struct {
	UserID      string    `gorm:"primaryKey"`
	PlanID      string    `gorm:"primaryKey"`
	PeriodKey   string    `gorm:"primaryKey"`
	Used        int64     `gorm:"not null;default:0"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name.
func (UsageCounter) TableName() string {
	return "usage_counters"
}

// UsageStatus is the read-only view of a user's consumption in the current period.
type UsageStatus struct {
	UserID      string    `json:"user_id"`
	PlanID      string    `json:"plan_id"`
	PlanName    string    `json:"plan_name"`
	Operations  []string  `json:"operations"`
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit"`
	Remaining   int64     `json:"remaining"`
	PeriodKey   string    `json:"period_key"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// SubscriptionDetails mirrors the subscription lookup response: subscription, plan and usage.
type SubscriptionDetails struct {
	Subscription *Subscription
	Plan         *Plan
	Usage        *UsageStatus
}
