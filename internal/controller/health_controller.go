package controller

import (
	"context"
	"net/http"
	"time"

	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	Store repository.Pinger
	// Redis is nil when nothing is configured to use it.
	Redis repository.Pinger
}

func NewHealthController(store, redis repository.Pinger) *HealthController {
	return &HealthController{Store: store, Redis: redis}
}

// HealthCheck godoc
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (ctrl *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"database": "up"}
	healthy := true
	if err := ctrl.Store.Ping(ctx); err != nil {
		components["database"] = "down"
		healthy = false
	}
	if ctrl.Redis != nil {
		components["redis"] = "up"
		if err := ctrl.Redis.Ping(ctx); err != nil {
			components["redis"] = "down"
			healthy = false
		}
	}

	if !healthy {
		util.ErrorWithData(c, http.StatusServiceUnavailable, "Service degraded", gin.H{"components": components})
		return
	}
	util.Success(c, gin.H{"status": "ok", "components": components})
}
