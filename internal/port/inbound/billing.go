package inbound

import "github.com/gin-gonic/gin"

// ===== Plan Catalog HTTP Ports =====

// PlanHttpPort defines plan administration HTTP handler interface.
type PlanHttpPort interface {
	// ListPlans handles GET /plans.
	ListPlans(c *gin.Context)

	// GetPlan handles GET /plans/:id.
	GetPlan(c *gin.Context)

	// CreatePlan handles POST /plans.
	CreatePlan(c *gin.Context)

	// UpdatePlan handles PUT /plans/:id.
	UpdatePlan(c *gin.Context)

	// DeletePlan handles DELETE /plans/:id.
	DeletePlan(c *gin.Context)
}

// ===== Subscription Directory HTTP Ports =====

// SubscriptionHttpPort defines subscription HTTP handler interface.
type SubscriptionHttpPort interface {
	// CreateSubscription handles POST /subscriptions.
	CreateSubscription(c *gin.Context)

	// GetSubscription handles GET /subscriptions/:user_id.
	GetSubscription(c *gin.Context)

	// ChangePlan handles PUT /subscriptions/:user_id.
	ChangePlan(c *gin.Context)
}
