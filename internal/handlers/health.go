package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/pkg/response"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// Health reports readiness. Any failing check turns the response into a 503.
func Health(service string, checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			if err := check.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}

		payload := gin.H{"status": "ok", "service": service, "checks": results}
		if status != http.StatusOK {
			payload["status"] = "degraded"
			c.JSON(status, response.Response{Success: false, Data: payload})
			return
		}
		response.Success(c, status, payload)
	}
}
