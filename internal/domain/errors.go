package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownEmail       = errors.New("no account exists for this email, sign up first")

	// Contest errors
	ErrContestNotFound     = errors.New("contest not found")
	ErrInvalidContest      = errors.New("invalid contest definition")
	ErrInvalidFilter       = errors.New("invalid phase filter")
	ErrContestEnded        = errors.New("contest has ended")
	ErrContestNotActive    = errors.New("contest is not active")
	ErrContestCancelled    = errors.New("contest has been cancelled")
	ErrContestStarted      = errors.New("contest has already started")
	ErrContestNotEnded     = errors.New("contest has not ended yet")
	ErrNotContestOrganizer = errors.New("only the organizer can manage this contest")

	// Problem errors
	ErrProblemNotFound     = errors.New("problem not found")
	ErrProblemNotInContest = errors.New("problem not found in this contest")

	// Participant errors
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrAlreadyRegistered    = errors.New("already registered for this contest")
	ErrParticipantWithdrawn = errors.New("participant has withdrawn from this contest")

	// Submission errors
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrEmptyCode            = errors.New("code must not be empty")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrAttemptLimitExceeded = errors.New("attempt limit reached for this problem")
	ErrDuplicateAttempt     = errors.New("duplicate attempt number")

	// Infrastructure errors
	ErrJudgeUnavailable   = errors.New("judge is unavailable, try again")
	ErrStorageUnavailable = errors.New("storage is unavailable, try again")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// ErrorCategory tells a caller whether a failure is worth retrying
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryCapacity       ErrorCategory = "capacity"
	CategoryInfrastructure ErrorCategory = "infrastructure"
	CategoryConflict       ErrorCategory = "conflict"
)

// categories is checked in order, so when a chain carries several sentinels
// the earliest entry wins. Non-retryable categories come before infrastructure.
var categories = []struct {
	err      error
	category ErrorCategory
}{
	{ErrUserNotFound, CategoryValidation},
	{ErrInvalidCredentials, CategoryValidation},
	{ErrInvalidToken, CategoryValidation},
	{ErrUnknownEmail, CategoryValidation},
	{ErrContestNotFound, CategoryValidation},
	{ErrInvalidContest, CategoryValidation},
	{ErrInvalidFilter, CategoryValidation},
	{ErrProblemNotFound, CategoryValidation},
	{ErrProblemNotInContest, CategoryValidation},
	{ErrParticipantNotFound, CategoryValidation},
	{ErrSubmissionNotFound, CategoryValidation},
	{ErrEmptyCode, CategoryValidation},
	{ErrUnsupportedLanguage, CategoryValidation},
	{ErrBadRequest, CategoryValidation},
	{ErrUnauthorized, CategoryValidation},
	{ErrForbidden, CategoryValidation},
	{ErrNotContestOrganizer, CategoryValidation},

	{ErrAttemptLimitExceeded, CategoryCapacity},
	{ErrContestNotActive, CategoryCapacity},
	{ErrContestEnded, CategoryCapacity},
	{ErrContestCancelled, CategoryCapacity},
	{ErrContestStarted, CategoryCapacity},
	{ErrContestNotEnded, CategoryCapacity},
	{ErrParticipantWithdrawn, CategoryCapacity},

	{ErrAlreadyRegistered, CategoryConflict},
	{ErrUserAlreadyExists, CategoryConflict},
	{ErrDuplicateAttempt, CategoryConflict},

	{ErrJudgeUnavailable, CategoryInfrastructure},
	{ErrStorageUnavailable, CategoryInfrastructure},
	{ErrInternalServer, CategoryInfrastructure},
}

// CategoryOf classifies err by the first entry of categories found in its chain.
// Anything unrecognised is an infrastructure failure.
func CategoryOf(err error) ErrorCategory {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.category
		}
	}
	return CategoryInfrastructure
}

// IsRetryable reports whether the caller may retry the same request
func IsRetryable(err error) bool {
	return CategoryOf(err) == CategoryInfrastructure
}

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
