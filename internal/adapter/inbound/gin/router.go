package gin

import (
	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/port/inbound"
)

// Handlers groups the HTTP ports served by the API.
type Handlers struct {
	Plans         inbound.PlanHttpPort
	Subscriptions inbound.SubscriptionHttpPort
	Access        inbound.AccessHttpPort
}

// RegisterRoutes mounts the admin, access and sample service routes on r.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	plans := r.Group("/plans")
	{
		plans.GET("", h.Plans.ListPlans)
		plans.POST("", h.Plans.CreatePlan)
		plans.GET("/:id", h.Plans.GetPlan)
		plans.PUT("/:id", h.Plans.UpdatePlan)
		plans.DELETE("/:id", h.Plans.DeletePlan)
	}

	subs := r.Group("/subscriptions")
	{
		subs.POST("", h.Subscriptions.CreateSubscription)
		subs.GET("/:user_id", h.Subscriptions.GetSubscription)
		subs.PUT("/:user_id", h.Subscriptions.ChangePlan)
	}

	r.GET("/access/:user_id/:operation", h.Access.CheckAccess)
	r.GET("/usage/:user_id", h.Access.GetUsage)

	api := r.Group("/api")
	for _, name := range SampleServices {
		api.GET("/"+name, h.Access.RequireAccess(name), Service(name))
	}
}
