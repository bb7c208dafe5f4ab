package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Difficulty represents the difficulty level of a problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// IsValid reports whether d is one of the known levels
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

const (
	DefaultTimeLimitMs   = 2000
	DefaultMemoryLimitKb = 256 * 1024
)

// Problem is one task of a contest. SolvedCount and AttemptedCount are
// caches of the submission log and are never used for scoring.
type Problem struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	ContestID      uuid.UUID      `json:"contest_id" gorm:"type:uuid;not null;index"`
	Position       int            `json:"position" gorm:"not null"`
	Title          string         `json:"title" gorm:"not null"`
	Statement      string         `json:"statement" gorm:"type:text"`
	Difficulty     Difficulty     `json:"difficulty" gorm:"type:varchar(10);not null"`
	Points         int            `json:"points" gorm:"not null"`
	Tags           pq.StringArray `json:"tags" gorm:"type:text[]"`
	TimeLimitMs    int            `json:"time_limit_ms" gorm:"not null"`
	MemoryLimitKb  int            `json:"memory_limit_kb" gorm:"not null"`
	SolvedCount    int            `json:"solved_count" gorm:"not null;default:0"`
	AttemptedCount int            `json:"attempted_count" gorm:"not null;default:0"`
	CreatedAt      time.Time      `json:"created_at"`

	// Relationships
	TestCases []TestCase `json:"-" gorm:"foreignKey:ProblemID"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// Limits returns the execution budget for a run of this problem
func (p *Problem) Limits() ExecutionLimits {
	return ExecutionLimits{
		TimeLimitMs:   p.TimeLimitMs,
		MemoryLimitKb: p.MemoryLimitKb,
	}
}

// TestCase is a hidden input/expected-output pair
type TestCase struct {
	ID             uuid.UUID `json:"-" gorm:"type:uuid;primary_key"`
	ProblemID      uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	Position       int       `json:"-" gorm:"not null"`
	Input          string    `json:"-" gorm:"type:text"`
	ExpectedOutput string    `json:"-" gorm:"type:text"`
}

// TableName specifies the table name for GORM
func (TestCase) TableName() string {
	return "test_cases"
}

// ProblemSolve marks the first accepted submission of a participant on a problem.
// Its primary key makes the solved_count increment idempotent.
type ProblemSolve struct {
	ParticipantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProblemID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionID  uuid.UUID `gorm:"type:uuid;not null"`
	SolvedAt      time.Time `gorm:"not null"`
}

// TableName specifies the table name for GORM
func (ProblemSolve) TableName() string {
	return "problem_solves"
}

// ProblemRepository defines the interface for problem data access
type ProblemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Problem, error)
	// FindWithTestCases loads the problem with its test cases in order
	FindWithTestCases(ctx context.Context, id uuid.UUID) (*Problem, error)
	FindByContestID(ctx context.Context, contestID uuid.UUID) ([]Problem, error)
}

// ProblemResponse represents a problem in API responses
type ProblemResponse struct {
	ID             uuid.UUID  `json:"id"`
	Position       int        `json:"position"`
	Title          string     `json:"title"`
	Statement      string     `json:"statement"`
	Difficulty     Difficulty `json:"difficulty"`
	Points         int        `json:"points"`
	Tags           []string   `json:"tags"`
	TimeLimitMs    int        `json:"time_limit_ms"`
	MemoryLimitKb  int        `json:"memory_limit_kb"`
	SolvedCount    int        `json:"solved_count"`
	AttemptedCount int        `json:"attempted_count"`
}

// ToResponse converts a Problem to a ProblemResponse
func (p *Problem) ToResponse() ProblemResponse {
	return ProblemResponse{
		ID:             p.ID,
		Position:       p.Position,
		Title:          p.Title,
		Statement:      p.Statement,
		Difficulty:     p.Difficulty,
		Points:         p.Points,
		Tags:           p.Tags,
		TimeLimitMs:    p.TimeLimitMs,
		MemoryLimitKb:  p.MemoryLimitKb,
		SolvedCount:    p.SolvedCount,
		AttemptedCount: p.AttemptedCount,
	}
}
