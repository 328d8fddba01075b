package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
	Metrics   any       `json:"metrics,omitempty"`
	Timestamp time.Time `json:"timestamp" example:"2025-04-17T02:00:00Z"`
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping() error
}

// CacheChecker is the Redis client as seen by the health routes.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
	GetMetrics() map[string]interface{}
}

// SetupHealthRoutes registers health check endpoints. db and cache may be nil
// when the process runs without them.
func SetupHealthRoutes(router *gin.Engine, db Pinger, cache CacheChecker) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
		})
	})

	// Ready means the event repository answers. A degraded calendar still
	// serves mocks, so this is informational for load balancers.
	router.GET("/health/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, HealthResponse{
					Status:    "degraded",
					Component: "database",
					Error:     err.Error(),
					Timestamp: time.Now().UTC(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC(),
		})
	})

	router.GET("/health/cache", func(c *gin.Context) {
		if cache == nil {
			c.JSON(http.StatusOK, HealthResponse{
				Status:    "disabled",
				Component: "cache",
				Timestamp: time.Now().UTC(),
			})
			return
		}
		if err := cache.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:    "unhealthy",
				Component: "cache",
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Component: "cache",
			Metrics:   cache.GetMetrics(),
			Timestamp: time.Now().UTC(),
		})
	})
}
