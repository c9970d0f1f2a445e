package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seatwatch/seatwatch-backend/internal/response"
	"github.com/seatwatch/seatwatch-backend/internal/service"
)

// StatsHandler serves the public site summary.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Summary godoc
// GET /api/v1/stats
// Returns watched-course and user totals. Cached for a minute.
func (h *StatsHandler) Summary(c *gin.Context) {
	stats, err := h.statsService.GetStats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, stats)
}
