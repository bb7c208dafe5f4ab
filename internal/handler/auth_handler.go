package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/service"
)

// AuthHandler serves sign-up, login and token refresh
type AuthHandler struct {
	userService *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body of POST /api/auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse carries the caller and a token pair. User is omitted on refresh.
type AuthResponse struct {
	User   *domain.UserResponse `json:"user,omitempty"`
	Tokens *service.TokenPair   `json:"tokens"`
}

func authenticated(c *gin.Context, status int, user *domain.User, tokens *service.TokenPair) {
	resp := AuthResponse{Tokens: tokens}
	if user != nil {
		u := user.ToResponse()
		resp.User = &u
	}
	c.JSON(status, resp)
}

// Register creates an account
// POST /api/auth/signup
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, tokens, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	authenticated(c, http.StatusCreated, user, tokens)
}

// Login exchanges credentials for tokens
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, tokens, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	authenticated(c, http.StatusOK, user, tokens)
}

// Refresh
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tokens, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	authenticated(c, http.StatusOK, nil, tokens)
}
