package handlers

import (
	"github.com/gin-gonic/gin"
)

// attachError records err on the gin context; the observability middleware
// logs it with the request.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends {"error": message} and records err for the request log
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails also lists per-field validation problems
func respondErrorWithDetails(c *gin.Context, status int, message string, details []ValidationError, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

// respondPageError answers a page request that cannot render the form at all
func respondPageError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.String(status, message)
}
