package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/middleware"
	"github.com/prephub/contests/internal/service"
)

// LeaderboardHandler serves contest rankings
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	contestService     *service.ContestService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService, contestService *service.ContestService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		contestService:     contestService,
	}
}

// GetLeaderboard returns the latest ranking snapshot
// GET /api/contests/:id/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	board, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

// Refresh rebuilds the ranking now; organizer only
// POST /api/contests/:id/leaderboard/refresh
func (h *LeaderboardHandler) Refresh(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	isOrganizer, err := h.contestService.IsOrganizer(c.Request.Context(), contestID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isOrganizer {
		respondError(c, domain.ErrNotContestOrganizer)
		return
	}

	board, err := h.leaderboardService.Refresh(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}
