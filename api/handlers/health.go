package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailhookhq/mailhook/services"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports connection pool and idle monitor state
func Status(s *services.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connections": s.ConnectionPool.Status(),
			"idle":        s.IdleService.Status(),
		})
	}
}
