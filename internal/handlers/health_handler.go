package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a dependency is usable, with a reason when not
type ReadinessCheck func() (bool, string)

type HealthHandler struct {
	checks []ReadinessCheck
}

func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
	}
}

func (h *HealthHandler) Healthcheck(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")

	for _, check := range h.checks {
		if ok, reason := check(); !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"reason": reason,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
