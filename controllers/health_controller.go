package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Healther is a dependency that can report whether it is usable.
type Healther interface {
	IsHealthy() bool
}

type HealthController struct {
	db       *gorm.DB
	optional map[string]Healther
}

// NewHealthController checks db on every call; optional dependencies are
// reported but never fail the check.
func NewHealthController(db *gorm.DB, optional map[string]Healther) *HealthController {
	return &HealthController{db: db, optional: optional}
}

func (h *HealthController) Check(c *gin.Context) {
	response := gin.H{"status": "ok", "db": "ok"}

	sqlDB, err := h.db.DB()
	if err != nil {
		response["status"] = "error"
		response["db"] = "error: cannot get DB instance"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		response["status"] = "error"
		response["db"] = "error: cannot connect to DB"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	for name, dep := range h.optional {
		if dep == nil {
			continue
		}
		if dep.IsHealthy() {
			response[name] = "ok"
		} else {
			response[name] = "degraded"
		}
	}
	c.JSON(http.StatusOK, response)
}
