package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandler reports the reachability of the service's backing systems
type HealthHandler struct {
	logger  *slog.Logger
	service string
	checks  []NamedCheck
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:  deps.Logger,
		service: deps.ServiceName,
		checks:  deps.Checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))

	for _, check := range h.checks {
		if err := check.Checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("dependency", check.Name),
				slog.Any("error", err),
			)
			results[check.Name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.service,
		"checks":  results,
	})
}
