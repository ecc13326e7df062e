package gin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/domain/access"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/port/inbound"
	sharederrors "github.com/uniedit/quotagate/internal/shared/errors"
	"github.com/uniedit/quotagate/internal/shared/response"
	"github.com/uniedit/quotagate/internal/utils/middleware"
)

// DecisionKey is the gin context key holding the decision of a gated request.
const DecisionKey = "access_decision"

// accessHandler implements inbound.AccessHttpPort.
type accessHandler struct {
	accessDomain access.AccessDomain
	retryAfter   time.Duration
	now          func() time.Time
}

// NewAccessHandler creates a new access HTTP handler.
// retryAfter is advertised on transient denials.
func NewAccessHandler(accessDomain access.AccessDomain, retryAfter time.Duration) inbound.AccessHttpPort {
	return &accessHandler{
		accessDomain: accessDomain,
		retryAfter:   retryAfter,
		now:          time.Now,
	}
}

type decisionResponse struct {
	Message   string       `json:"message"`
	Allowed   bool         `json:"allowed"`
	UserID    string       `json:"user_id"`
	Operation string       `json:"operation"`
	PlanID    string       `json:"plan_id"`
	Used      int64        `json:"used"`
	Limit     int64        `json:"limit"`
	Remaining int64        `json:"remaining"`
	Period    model.Period `json:"period"`
}

func (h *accessHandler) CheckAccess(c *gin.Context) {
	userID, ok := requiredParam(c, "user_id")
	if !ok {
		return
	}
	operation, ok := requiredParam(c, "operation")
	if !ok {
		return
	}

	d := h.accessDomain.Decide(c.Request.Context(), userID, operation, h.now())
	writeQuotaHeaders(c, d)
	if !d.Allowed {
		h.deny(c, d, response.AppError)
		return
	}

	c.JSON(http.StatusOK, decisionResponse{
		Message:   "Access granted",
		Allowed:   true,
		UserID:    d.UserID,
		Operation: d.Operation,
		PlanID:    d.PlanID,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		Period:    d.Period,
	})
}

func (h *accessHandler) GetUsage(c *gin.Context) {
	userID, ok := requiredParam(c, "user_id")
	if !ok {
		return
	}

	status, err := h.accessDomain.GetUsage(c.Request.Context(), userID, h.now())
	if err != nil {
		handleUsageError(c, err, h.retryAfter)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *accessHandler) RequireAccess(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(middleware.UserIDHeader))
		if userID == "" {
			response.AbortWithAppError(c, sharederrors.NewAppError(
				"UNAUTHENTICATED", "missing "+middleware.UserIDHeader+" header", http.StatusUnauthorized, nil))
			return
		}
		c.Set(middleware.UserIDKey, userID)

		d := h.accessDomain.Decide(c.Request.Context(), userID, operation, h.now())
		writeQuotaHeaders(c, d)
		if !d.Allowed {
			h.deny(c, d, response.AbortWithAppError)
			return
		}

		c.Set(DecisionKey, d)
		c.Next()
	}
}

func (h *accessHandler) deny(c *gin.Context, d *model.Decision, write func(*gin.Context, *sharederrors.AppError)) {
	if d.Err != nil {
		_ = c.Error(d.Err)
	}
	if d.Reason.IsTransient() {
		setRetryAfter(c, h.retryAfter)
	}
	write(c, denial(d))
}
