package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/models"
	"github.com/use-agent/crawlkit/renderer"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the renderer reports it cannot open sessions.
func Health(r renderer.Renderer, strategy string, jobs *JobStore, storageBackend string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if err := renderer.Check(r); err != nil {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Renderer: r.Name(),
			Strategy: strategy,
			Jobs:     jobs.Stats(),
			Storage:  storageBackend,
			Version:  Version,
		})
	}
}
