package gin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/model"
	"github.com/uniedit/quotagate/internal/shared/response"
)

// Quota headers attached to allowed and quota-exceeded decisions.
const (
	QuotaLimitHeader     = "X-Quota-Limit"
	QuotaRemainingHeader = "X-Quota-Remaining"
	QuotaResetHeader     = "X-Quota-Reset"
)

// requiredParam reads a path parameter, writing 400 when it is blank.
func requiredParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		response.BadRequest(c, name+" is required")
		return "", false
	}
	return v, true
}

// parsePeriod parses a Go duration string; empty means unset.
func parsePeriod(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func writeQuotaHeaders(c *gin.Context, d *model.Decision) {
	if !d.Allowed && d.Reason != model.DenyReasonQuotaExceeded {
		return
	}
	c.Header(QuotaLimitHeader, strconv.FormatInt(d.Limit, 10))
	c.Header(QuotaRemainingHeader, strconv.FormatInt(d.Remaining, 10))
	c.Header(QuotaResetHeader, strconv.FormatInt(d.Period.End.Unix(), 10))
}

// bindError reports a malformed request body.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
}
