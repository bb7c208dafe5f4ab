package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prephub/contests/internal/domain"
)

// statusFor maps a domain error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrContestNotFound),
		errors.Is(err, domain.ErrProblemNotFound),
		errors.Is(err, domain.ErrProblemNotInContest),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrUnknownEmail):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrNotContestOrganizer),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrParticipantWithdrawn):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrAttemptLimitExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrDuplicateAttempt),
		errors.Is(err, domain.ErrContestNotActive),
		errors.Is(err, domain.ErrContestEnded),
		errors.Is(err, domain.ErrContestCancelled),
		errors.Is(err, domain.ErrContestStarted),
		errors.Is(err, domain.ErrContestNotEnded):
		return http.StatusConflict

	case errors.Is(err, domain.ErrJudgeUnavailable),
		errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}

	if domain.CategoryOf(err) == domain.CategoryValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes {"error", "category", "retryable"}. Infrastructure
// failures never leak their cause to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	category := domain.CategoryOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	if status == http.StatusServiceUnavailable {
		message = "Service temporarily unavailable, please retry"
		c.Header("Retry-After", "5")
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error":     message,
		"category":  category,
		"retryable": domain.IsRetryable(err),
	})
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     "Invalid request body",
		"details":   err.Error(),
		"category":  domain.CategoryValidation,
		"retryable": false,
	})
}
