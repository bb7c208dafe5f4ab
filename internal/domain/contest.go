package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Contest is a time-windowed set of problems. Its phase is never stored,
// it is derived from StartTime and EndTime on every decision.
type Contest struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Slug             string    `json:"slug" gorm:"uniqueIndex;not null"`
	Title            string    `json:"title" gorm:"not null"`
	Description      string    `json:"description" gorm:"type:text"`
	StartTime        time.Time `json:"start_time" gorm:"not null;index"`
	EndTime          time.Time `json:"end_time" gorm:"not null;index"`
	OrganizerID      uuid.UUID `json:"organizer_id" gorm:"type:uuid;not null;index"`
	ParticipantCount int       `json:"participant_count" gorm:"not null;default:0"`
	Cancelled        bool      `json:"cancelled" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relationships
	Problems []Problem `json:"problems,omitempty" gorm:"foreignKey:ContestID"`
}

// TableName specifies the table name for GORM
func (Contest) TableName() string {
	return "contests"
}

// PhaseAt returns the contest phase at now
func (c *Contest) PhaseAt(now time.Time) Phase {
	return PhaseAt(now, c.StartTime, c.EndTime)
}

// ContestRepository defines the interface for contest data access
type ContestRepository interface {
	// Create inserts the contest together with its problems and test cases
	Create(ctx context.Context, contest *Contest) error
	FindByID(ctx context.Context, id uuid.UUID) (*Contest, error)
	FindByIDWithProblems(ctx context.Context, id uuid.UUID) (*Contest, error)
	// FindAll returns non-cancelled contests ordered by start time
	FindAll(ctx context.Context) ([]Contest, error)
	// FindOverlapping returns non-cancelled contests whose window intersects [from, to]
	FindOverlapping(ctx context.Context, from, to time.Time) ([]Contest, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Contest, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// CreateContestRequest represents the data needed to create a new contest
type CreateContestRequest struct {
	Title       string                 `json:"title" binding:"required,min=3,max=200"`
	Description string                 `json:"description" binding:"max=5000"`
	StartTime   time.Time              `json:"start_time" binding:"required"`
	EndTime     time.Time              `json:"end_time" binding:"required"`
	Problems    []CreateProblemRequest `json:"problems" binding:"required,min=1,dive"`
}

// CreateProblemRequest describes one problem of a new contest
type CreateProblemRequest struct {
	Title         string                  `json:"title" binding:"required"`
	Statement     string                  `json:"statement"`
	Difficulty    Difficulty              `json:"difficulty" binding:"required"`
	Points        int                     `json:"points" binding:"required"`
	Tags          []string                `json:"tags"`
	TimeLimitMs   int                     `json:"time_limit_ms"`
	MemoryLimitKb int                     `json:"memory_limit_kb"`
	TestCases     []CreateTestCaseRequest `json:"test_cases" binding:"required,min=1,dive"`
}

// CreateTestCaseRequest is a hidden input/expected-output pair
type CreateTestCaseRequest struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Validate checks the contest window and every problem definition
func (r *CreateContestRequest) Validate(now time.Time) error {
	if strings.TrimSpace(r.Title) == "" {
		return NewDomainError(ErrInvalidContest, "title is required")
	}
	if !r.StartTime.Before(r.EndTime) {
		return NewDomainError(ErrInvalidContest, "start_time must be before end_time")
	}
	if !r.StartTime.After(now) {
		return NewDomainError(ErrInvalidContest, "start_time must be in the future")
	}
	if len(r.Problems) == 0 {
		return NewDomainError(ErrInvalidContest, "a contest needs at least one problem")
	}
	for i, p := range r.Problems {
		if strings.TrimSpace(p.Title) == "" {
			return NewDomainError(ErrInvalidContest, fmt.Sprintf("problem %d: title is required", i+1))
		}
		if p.Points <= 0 {
			return NewDomainError(ErrInvalidContest, fmt.Sprintf("problem %d: points must be positive", i+1))
		}
		if !p.Difficulty.IsValid() {
			return NewDomainError(ErrInvalidContest, fmt.Sprintf("problem %d: difficulty must be EASY, MEDIUM or HARD", i+1))
		}
		if p.TimeLimitMs < 0 || p.MemoryLimitKb < 0 {
			return NewDomainError(ErrInvalidContest, fmt.Sprintf("problem %d: limits must not be negative", i+1))
		}
		if len(p.TestCases) == 0 {
			return NewDomainError(ErrInvalidContest, fmt.Sprintf("problem %d: at least one test case is required", i+1))
		}
	}
	return nil
}

// ContestSummary is the listing view of a contest
type ContestSummary struct {
	ID               uuid.UUID `json:"id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Phase            Phase     `json:"phase"`
	ParticipantCount int       `json:"participant_count"`
	ProblemCount     int       `json:"problem_count"`
	Cancelled        bool      `json:"cancelled"`
}

// ContestDetail is the full view of a contest; test cases are never included
type ContestDetail struct {
	ContestSummary
	OrganizerID          uuid.UUID         `json:"organizer_id"`
	AttemptCap           int               `json:"attempt_cap"`
	Problems             []ProblemResponse `json:"problems"`
	TimeRemainingSeconds int               `json:"time_remaining_seconds"`
	StartsInSeconds      int               `json:"starts_in_seconds"`
}

// ToSummary converts a Contest to a ContestSummary with the phase at now
func (c *Contest) ToSummary(now time.Time) ContestSummary {
	return ContestSummary{
		ID:               c.ID,
		Slug:             c.Slug,
		Title:            c.Title,
		Description:      c.Description,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		Phase:            c.PhaseAt(now),
		ParticipantCount: c.ParticipantCount,
		ProblemCount:     len(c.Problems),
		Cancelled:        c.Cancelled,
	}
}

// ToDetail converts a Contest to a ContestDetail with the phase at now.
// Problems stay hidden until the contest starts; ProblemCount is still set.
func (c *Contest) ToDetail(now time.Time, attemptCap int) ContestDetail {
	detail := ContestDetail{
		ContestSummary: c.ToSummary(now),
		OrganizerID:    c.OrganizerID,
		AttemptCap:     attemptCap,
		Problems:       []ProblemResponse{},
	}

	switch detail.Phase {
	case PhaseOngoing:
		detail.TimeRemainingSeconds = int(c.EndTime.Sub(now).Seconds())
	case PhaseUpcoming:
		detail.StartsInSeconds = int(c.StartTime.Sub(now).Seconds())
		return detail
	}

	detail.Problems = make([]ProblemResponse, len(c.Problems))
	for i := range c.Problems {
		detail.Problems[i] = c.Problems[i].ToResponse()
	}

	return detail
}
