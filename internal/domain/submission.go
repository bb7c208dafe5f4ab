package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the final verdict of a judged submission
type SubmissionStatus string

const (
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
)

// Language is a source language the judge can run
type Language string

const (
	LanguageCPP        Language = "cpp"
	LanguageC          Language = "c"
	LanguageJava       Language = "java"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJavaScript Language = "javascript"
)

// IsValid reports whether the judge supports l
func (l Language) IsValid() bool {
	switch l {
	case LanguageCPP, LanguageC, LanguageJava, LanguagePython, LanguageGo, LanguageJavaScript:
		return true
	}
	return false
}

// Submission is one scored attempt. Rows are append-only; AttemptNumber is
// unique per (participant, problem) so the attempt cap holds under races.
type Submission struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	ContestID     uuid.UUID        `json:"contest_id" gorm:"type:uuid;not null;index"`
	ProblemID     uuid.UUID        `json:"problem_id" gorm:"type:uuid;not null;uniqueIndex:idx_submission_attempt,priority:2"`
	ParticipantID uuid.UUID        `json:"participant_id" gorm:"type:uuid;not null;uniqueIndex:idx_submission_attempt,priority:1"`
	AttemptNumber int              `json:"attempt_number" gorm:"not null;uniqueIndex:idx_submission_attempt,priority:3"`
	Code          string           `json:"code" gorm:"type:text;not null"`
	Language      Language         `json:"language" gorm:"type:varchar(20);not null"`
	Status        SubmissionStatus `json:"status" gorm:"type:varchar(30);not null"`
	Score         int              `json:"score" gorm:"not null;default:0"`
	PassedCount   int              `json:"passed_count" gorm:"not null;default:0"`
	TotalCount    int              `json:"total_count" gorm:"not null;default:0"`
	RuntimeMs     int              `json:"runtime_ms" gorm:"not null;default:0"`
	MemoryKb      int              `json:"memory_kb" gorm:"not null;default:0"`
	Verdict       string           `json:"verdict"`
	SubmittedAt   time.Time        `json:"submitted_at" gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (Submission) TableName() string {
	return "submissions"
}

// SubmissionRepository defines the interface for submission data access
type SubmissionRepository interface {
	// CreateAttempt assigns the next attempt number and inserts the submission
	// only if fewer than maxAttempts rows exist for (participant, problem).
	// The problem counters are updated in the same transaction.
	CreateAttempt(ctx context.Context, submission *Submission, maxAttempts int) error
	CountAttempts(ctx context.Context, participantID, problemID uuid.UUID) (int, error)
	FindByParticipant(ctx context.Context, participantID uuid.UUID) ([]Submission, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Submission, error)
}

// SubmitRequest is the body of a submission
type SubmitRequest struct {
	Code     string   `json:"code" binding:"required"`
	Language Language `json:"language" binding:"required"`
}

// SubmissionResult is returned to the participant after judging
type SubmissionResult struct {
	SubmissionID      uuid.UUID        `json:"submission_id"`
	Status            SubmissionStatus `json:"status"`
	Score             int              `json:"score"`
	AttemptsUsed      int              `json:"attempts_used"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	PassedCount       int              `json:"passed_count"`
	TotalCount        int              `json:"total_count"`
	RuntimeMs         int              `json:"runtime_ms"`
	MemoryKb          int              `json:"memory_kb"`
	Verdict           string           `json:"verdict"`
}

// AttemptStatus describes how many scored attempts are left on a problem
type AttemptStatus struct {
	Used       int  `json:"used"`
	Remaining  int  `json:"remaining"`
	Cap        int  `json:"cap"`
	CanAttempt bool `json:"can_attempt"`
}

// ReviewResult is the outcome of an unscored post-contest run
type ReviewResult struct {
	Status      SubmissionStatus `json:"status"`
	PassedCount int              `json:"passed_count"`
	TotalCount  int              `json:"total_count"`
	RuntimeMs   int              `json:"runtime_ms"`
	MemoryKb    int              `json:"memory_kb"`
	Verdict     string           `json:"verdict"`
}
