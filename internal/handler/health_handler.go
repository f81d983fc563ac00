package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck returns the names of missing settings; empty means ready.
type ReadinessCheck func() []string

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready ReadinessCheck
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(ready ReadinessCheck) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Liveness handles GET /healthz
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
// @Summary Readiness probe
// @Description Reports unavailable while upstream credentials are missing.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.ready != nil {
		if missing := h.ready(); len(missing) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  "missing configuration: " + strings.Join(missing, ", "),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
