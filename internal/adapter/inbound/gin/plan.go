package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/domain/billing"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/inbound"
)

// planHandler implements inbound.PlanHttpPort.
type planHandler struct {
	billingDomain billing.BillingDomain
}

// NewPlanHandler creates a new plan HTTP handler.
func NewPlanHandler(billingDomain billing.BillingDomain) inbound.PlanHttpPort {
	return &planHandler{billingDomain: billingDomain}
}

type createPlanRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Operations  []string `json:"operations" binding:"required,min=1"`
	Quota       int64    `json:"quota" binding:"required,gt=0"`
	Period      string   `json:"period_length"`
}

type updatePlanRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Operations  []string `json:"operations"`
	Quota       *int64   `json:"quota"`
	Period      *string  `json:"period_length"`
}

func (h *planHandler) ListPlans(c *gin.Context) {
	plans, err := h.billingDomain.ListPlans(c.Request.Context())
	if err != nil {
		handleBillingError(c, err)
		return
	}

	resp := make([]*model.PlanResponse, len(plans))
	for i, p := range plans {
		resp[i] = p.ToResponse()
	}
	c.JSON(http.StatusOK, gin.H{"plans": resp})
}

func (h *planHandler) GetPlan(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	plan, err := h.billingDomain.GetPlan(c.Request.Context(), id)
	if err != nil {
		handleBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.ToResponse())
}

func (h *planHandler) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	period, err := parsePeriod(req.Period)
	if err != nil {
		bindError(c, err)
		return
	}

	plan, err := h.billingDomain.CreatePlan(c.Request.Context(), &billing.PlanInput{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		Operations:   req.Operations,
		Quota:        req.Quota,
		PeriodLength: period,
	})
	if err != nil {
		handleBillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Plan created successfully",
		"plan_id": plan.ID,
		"plan":    plan.ToResponse(),
	})
}

func (h *planHandler) UpdatePlan(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	update := &billing.PlanUpdate{
		Name:        req.Name,
		Description: req.Description,
		Operations:  req.Operations,
		Quota:       req.Quota,
	}
	if req.Period != nil {
		period, err := parsePeriod(*req.Period)
		if err != nil {
			bindError(c, err)
			return
		}
		update.PeriodLength = &period
	}

	plan, err := h.billingDomain.UpdatePlan(c.Request.Context(), id, update)
	if err != nil {
		handleBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.ToResponse())
}

func (h *planHandler) DeletePlan(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	if err := h.billingDomain.DeletePlan(c.Request.Context(), id); err != nil {
		handleBillingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
