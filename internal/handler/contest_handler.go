package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/middleware"
	"github.com/prephub/contests/internal/service"
)

// ContestHandler handles contest-related HTTP requests
type ContestHandler struct {
	contestService *service.ContestService
}

// NewContestHandler creates a new contest handler
func NewContestHandler(contestService *service.ContestService) *ContestHandler {
	return &ContestHandler{
		contestService: contestService,
	}
}

// JoinRequest is the body of a join-by-email request
type JoinRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ListContests returns contests filtered by phase
// GET /api/contests?filter=all|upcoming|ongoing|ended
func (h *ContestHandler) ListContests(c *gin.Context) {
	filter, err := domain.ParsePhaseFilter(c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}

	contests, err := h.contestService.ListContests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": contests,
	})
}

// GetContest returns a contest with its problems
// GET /api/contests/:id
func (h *ContestHandler) GetContest(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.contestService.GetContest(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// CreateContest creates a contest organized by the caller
// POST /api/contests
func (h *ContestHandler) CreateContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	contest, err := h.contestService.CreateContest(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := h.contestService.GetContest(c.Request.Context(), contest.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// CancelContest calls off a contest before it starts
// POST /api/contests/:id/cancel
func (h *ContestHandler) CancelContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.contestService.CancelContest(c.Request.Context(), contestID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Contest cancelled",
	})
}

// Register enrolls the caller
// POST /api/contests/:id/register
func (h *ContestHandler) Register(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	participant, err := h.contestService.Register(c.Request.Context(), contestID, userID)
	h.respondAdmission(c, participant, err)
}

// JoinByEmail admits a registered user by email while the contest is live
// POST /api/contests/:id/join
func (h *ContestHandler) JoinByEmail(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	participant, err := h.contestService.JoinByEmail(c.Request.Context(), contestID, req.Email)
	h.respondAdmission(c, participant, err)
}

// respondAdmission answers 201 for a new participant and 409 with the
// existing participant for a repeat registration
func (h *ContestHandler) respondAdmission(c *gin.Context, participant *domain.Participant, err error) {
	if errors.Is(err, domain.ErrAlreadyRegistered) && participant != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":       err.Error(),
			"category":    domain.CategoryConflict,
			"retryable":   false,
			"participant": participant,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"participant": participant,
	})
}

// Withdraw leaves the contest; past submissions are kept
// POST /api/contests/:id/withdraw
func (h *ContestHandler) Withdraw(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.contestService.Withdraw(c.Request.Context(), contestID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Withdrawn from contest",
	})
}

// GetMyParticipation returns the caller's participant row in the contest
// GET /api/contests/:id/me
func (h *ContestHandler) GetMyParticipation(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	participant, err := h.contestService.ParticipantForUser(c.Request.Context(), contestID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant": participant,
	})
}
