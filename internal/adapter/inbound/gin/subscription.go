package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/domain/billing"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/inbound"
)

// subscriptionHandler implements inbound.SubscriptionHttpPort.
type subscriptionHandler struct {
	billingDomain billing.BillingDomain
}

// NewSubscriptionHandler creates a new subscription HTTP handler.
func NewSubscriptionHandler(billingDomain billing.BillingDomain) inbound.SubscriptionHttpPort {
	return &subscriptionHandler{billingDomain: billingDomain}
}

// subscriptionDetailsResponse is the GET /subscriptions/:user_id body.
// Usage is omitted when the ledger could not be read.
type subscriptionDetailsResponse struct {
	UserID     string              `json:"user_id"`
	PlanID     string              `json:"plan_id"`
	StartedAt  time.Time           `json:"started_at"`
	Plan       *model.PlanResponse `json:"plan"`
	UsageCount *int64              `json:"usage_count,omitempty"`
	Usage      *model.UsageStatus  `json:"usage,omitempty"`
}

func (h *subscriptionHandler) CreateSubscription(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		PlanID string `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sub, err := h.billingDomain.Subscribe(c.Request.Context(), req.UserID, req.PlanID)
	if err != nil {
		handleBillingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub.ToResponse())
}

func (h *subscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := requiredParam(c, "user_id")
	if !ok {
		return
	}

	details, err := h.billingDomain.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		handleBillingError(c, err)
		return
	}

	resp := &subscriptionDetailsResponse{
		UserID:    details.Subscription.UserID,
		PlanID:    details.Subscription.PlanID,
		StartedAt: details.Subscription.StartedAt,
		Usage:     details.Usage,
	}
	if details.Plan != nil {
		resp.Plan = details.Plan.ToResponse()
	}
	if details.Usage != nil {
		used := details.Usage.Used
		resp.UsageCount = &used
	}
	c.JSON(http.StatusOK, resp)
}

func (h *subscriptionHandler) ChangePlan(c *gin.Context) {
	userID, ok := requiredParam(c, "user_id")
	if !ok {
		return
	}

	var req struct {
		PlanID string `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sub, err := h.billingDomain.ChangePlan(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		handleBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription for user " + userID + " updated to plan " + sub.PlanID,
		"subscription": sub.ToResponse(),
	})
}
