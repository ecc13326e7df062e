package gin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/quotagate/internal/model"
)

// SampleServices are the demo endpoints mounted under /api.
// Each is gated by the operation of the same name.
var SampleServices = []string{"service1", "service2", "service3", "service4", "service5", "service6"}

// Service returns the handler of a sample service.
func Service(name string) gin.HandlerFunc {
	msg := "Service " + strings.TrimPrefix(name, "service") + " is active"
	return func(c *gin.Context) {
		body := gin.H{"message": msg}
		if d, ok := c.Get(DecisionKey); ok {
			if dec, ok := d.(*model.Decision); ok {
				body["remaining"] = dec.Remaining
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Health reports ok when every check passes within timeout.
func Health(timeout time.Duration, checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		c.JSON(status, body)
	}
}
