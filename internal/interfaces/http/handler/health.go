package handler

import (
	"net/http"
	"time"

	"github.com/finbooks/backend/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports service liveness and dependency health
type HealthHandler struct {
	BaseHandler
	db        *persistence.Database
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *persistence.Database, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	httpStatus := http.StatusOK
	dbStatus := "up"

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
			dbStatus = "down"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":   status,
		"version":  h.version,
		"uptime":   time.Since(h.startTime).Round(time.Second).String(),
		"database": dbStatus,
	})
}
