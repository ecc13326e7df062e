package inbound

import "github.com/gin-gonic/gin"

// AccessHttpPort defines access decision HTTP handler interface.
type AccessHttpPort interface {
	// CheckAccess handles GET /access/:user_id/:operation.
	// An allowed check consumes one unit of quota.
	CheckAccess(c *gin.Context)

	// GetUsage handles GET /usage/:user_id.
	GetUsage(c *gin.Context)

	// RequireAccess gates a route behind a decision for operation.
	// The caller is named by the X-User-ID header.
	RequireAccess(operation string) gin.HandlerFunc
}
