package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/middleware"
	"github.com/prephub/contests/internal/service"
)

// SubmissionHandler handles scored submissions and post-contest review
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	contestService    *service.ContestService
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissionService *service.SubmissionService, contestService *service.ContestService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		contestService:    contestService,
	}
}

// participant resolves the caller's participant id in the :id contest
func (h *SubmissionHandler) participant(c *gin.Context) (contestID, participantID uuid.UUID, ok bool) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	contestID, ok = pathID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	p, err := h.contestService.ParticipantForUser(c.Request.Context(), contestID, userID)
	if err != nil {
		respondError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return contestID, p.ID, true
}

// Submit judges one scored attempt
// POST /api/contests/:id/problems/:problemId/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	contestID, participantID, ok := h.participant(c)
	if !ok {
		return
	}
	problemID, ok := pathID(c, "problemId")
	if !ok {
		return
	}

	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), contestID, problemID, participantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// AttemptStatus reports used and remaining attempts on a problem
// GET /api/contests/:id/problems/:problemId/attempts
func (h *SubmissionHandler) AttemptStatus(c *gin.Context) {
	contestID, participantID, ok := h.participant(c)
	if !ok {
		return
	}
	problemID, ok := pathID(c, "problemId")
	if !ok {
		return
	}

	status, err := h.submissionService.AttemptStatus(c.Request.Context(), contestID, problemID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Review judges code against an ended contest without scoring it
// POST /api/contests/:id/problems/:problemId/review
func (h *SubmissionHandler) Review(c *gin.Context) {
	contestID, participantID, ok := h.participant(c)
	if !ok {
		return
	}
	problemID, ok := pathID(c, "problemId")
	if !ok {
		return
	}

	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.submissionService.Review(c.Request.Context(), contestID, problemID, participantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListSubmissions returns the caller's submissions in the contest
// GET /api/contests/:id/submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	contestID, participantID, ok := h.participant(c)
	if !ok {
		return
	}

	submissions, err := h.submissionService.ListSubmissions(c.Request.Context(), contestID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
	})
}

// GetSubmission returns one of the caller's submissions
// GET /api/contests/:id/submissions/:submissionId
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	_, participantID, ok := h.participant(c)
	if !ok {
		return
	}
	submissionID, ok := pathID(c, "submissionId")
	if !ok {
		return
	}

	submission, err := h.submissionService.GetSubmission(c.Request.Context(), submissionID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}
