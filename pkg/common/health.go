package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheckWithDeps returns a health check handler that also probes dependencies.
// Any failing check flips the overall status to unhealthy and the response to 503.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		results := make(map[string]string, len(checks))

		for name, check := range checks {
			if err := check(); err != nil {
				results[name] = "unhealthy: " + err.Error()
				status = "unhealthy"
			} else {
				results[name] = "healthy"
			}
		}

		code := http.StatusOK
		if status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Checks:  results,
		})
	}
}
