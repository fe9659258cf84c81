package handler

import (
	"net/http"

	"meshtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves aggregate counts for the operator dashboard
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Snapshot returns per-status counts for nodes, messages and tasks
// @Summary Registry statistics
// @Tags stats
// @Produce json
// @Success 200 {object} model.Stats
// @Router /api/v1/stats [get]
func (h *StatsHandler) Snapshot(c *gin.Context) {
	stats, err := h.statsService.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
