package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prephub/contests/internal/middleware"
	"github.com/prephub/contests/internal/service"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService    *service.UserService
	contestService *service.ContestService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService, contestService *service.ContestService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		contestService: contestService,
	}
}

// GetCurrentUser returns the currently authenticated user
// GET /api/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// GetMyContests returns every contest the user registered for with their standing
// GET /api/users/me/contests
func (h *UserHandler) GetMyContests(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	history, err := h.contestService.UserContests(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": history,
	})
}
