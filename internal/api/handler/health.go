package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueueDepth reports how many jobs are waiting to be claimed.
type QueueDepth interface {
	Pending() (int, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	queue QueueDepth
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue QueueDepth) *HealthHandler {
	return &HealthHandler{queue: queue}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	pending, err := h.queue.Pending()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  "queue unreadable: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"pending": pending,
	})
}
