package gin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/domain/access"
	"github.com/uniedit/quotagate/internal/domain/billing"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/outbound"
	sharederrors "github.com/uniedit/quotagate/internal/shared/errors"
	"github.com/uniedit/quotagate/internal/shared/response"
)

// billingErrors maps plan catalog and subscription errors to HTTP responses.
var billingErrors = []response.ErrorMapping{
	{Err: billing.ErrInvalidRequest, Status: http.StatusBadRequest, Code: "invalid_request"},
	{Err: billing.ErrInvalidPlan, Status: http.StatusBadRequest, Code: "invalid_plan"},
	{Err: billing.ErrPlanNotFound, Status: http.StatusNotFound, Code: "plan_not_found", Message: "Plan not found"},
	{Err: billing.ErrPlanExists, Status: http.StatusConflict, Code: "plan_exists", Message: "Plan with this name already exists"},
	{Err: billing.ErrPlanInUse, Status: http.StatusConflict, Code: "plan_in_use"},
	{Err: billing.ErrSubscriptionNotFound, Status: http.StatusNotFound, Code: "subscription_not_found", Message: "Subscription not found"},
	{Err: billing.ErrSubscriptionExists, Status: http.StatusConflict, Code: "subscription_exists", Message: "Subscription already exists"},
	{Err: billing.ErrSamePlan, Status: http.StatusConflict, Code: "same_plan", Message: "Subscription is already on this plan"},
}

// usageErrors maps usage lookup errors that are not retryable.
var usageErrors = []response.ErrorMapping{
	{Err: access.ErrInvalidRequest, Status: http.StatusBadRequest, Code: "invalid_request"},
	{Err: access.ErrSubscriptionNotFound, Status: http.StatusNotFound, Code: "subscription_not_found", Message: "Subscription not found"},
}

// handleBillingError writes the response for a billing domain error.
func handleBillingError(c *gin.Context, err error) {
	_ = c.Error(err)
	response.HandleErrorWithDefault(c, err, billingErrors)
}

// handleUsageError writes the response for a usage lookup error.
// Anything other than a caller mistake is reported as retryable.
func handleUsageError(c *gin.Context, err error, retryAfter time.Duration) {
	_ = c.Error(err)
	if response.HandleError(c, err, usageErrors) {
		return
	}
	msg := "usage could not be resolved"
	if errors.Is(err, outbound.ErrLedgerUnavailable) {
		msg = "usage ledger unavailable"
	}
	setRetryAfter(c, retryAfter)
	response.AppError(c, sharederrors.Unavailable(msg, err))
}

// denial converts a negative decision into the error a caller sees.
func denial(d *model.Decision) *sharederrors.AppError {
	switch d.Reason {
	case model.DenyReasonNoSubscription:
		return sharederrors.NotFound("subscription")
	case model.DenyReasonOperationNotPermitted:
		return sharederrors.Forbidden(fmt.Sprintf("Access denied: %s not allowed in plan", d.Operation))
	case model.DenyReasonQuotaExceeded:
		return sharederrors.QuotaExceeded("Access denied: usage limit exceeded").WithDetails(quotaDetails{
			Used:     d.Used,
			Limit:    d.Limit,
			ResetsAt: d.Period.End,
		})
	case model.DenyReasonResolutionError:
		if errors.Is(d.Err, access.ErrInvalidRequest) {
			return sharederrors.BadRequest("user and operation are required")
		}
		return sharederrors.Unavailable("access could not be resolved", d.Err)
	case model.DenyReasonLedgerUnavailable:
		return sharederrors.Unavailable("usage ledger unavailable", d.Err)
	default:
		return sharederrors.Internal("unexpected decision", d.Err)
	}
}

type quotaDetails struct {
	Used     int64     `json:"used"`
	Limit    int64     `json:"limit"`
	ResetsAt time.Time `json:"resets_at"`
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
}
