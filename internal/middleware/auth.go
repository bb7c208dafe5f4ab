package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prephub/contests/internal/domain"
)

const (
	// AuthorizationHeader is the header key for the JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for the JWT token
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for the user ID
	UserIDKey = "userID"
)

// TokenValidator resolves an access token to a user id
type TokenValidator interface {
	ValidateAccessToken(token string) (uuid.UUID, error)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":     message,
		"category":  domain.CategoryValidation,
		"retryable": false,
	})
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

// AuthMiddleware rejects requests without a valid access token
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(AuthorizationHeader) == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := validator.ValidateAccessToken(token)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID extracts the user ID from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireUser returns the caller's ID or aborts with 401
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		unauthorized(c, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}
