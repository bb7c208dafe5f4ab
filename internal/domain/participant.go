package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Participant is the registration of one user in one contest.
// Score and SolvedProblems are written only by score recomputation.
type Participant struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ContestID      uuid.UUID `json:"contest_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_contest_user"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_contest_user;index"`
	DisplayName    string    `json:"display_name" gorm:"not null"`
	Score          int       `json:"score" gorm:"not null;default:0"`
	SolvedProblems int       `json:"solved_problems" gorm:"not null;default:0"`
	Rank           int       `json:"rank" gorm:"not null;default:0"`
	JoinedAt       time.Time `json:"joined_at" gorm:"not null"`
	Withdrawn      bool      `json:"withdrawn" gorm:"not null;default:false"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Participant) TableName() string {
	return "participants"
}

// ParticipantRepository defines the interface for participant data access
type ParticipantRepository interface {
	// Create inserts the participant and bumps the contest participant_count.
	// A second row for the same (contest, user) yields ErrAlreadyRegistered.
	Create(ctx context.Context, participant *Participant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Participant, error)
	FindByContestAndUser(ctx context.Context, contestID, userID uuid.UUID) (*Participant, error)
	// FindByContestID returns active participants ordered by joined_at
	FindByContestID(ctx context.Context, contestID uuid.UUID) ([]Participant, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]Participant, error)
	// UpdateScore never lowers a stored score or solved count
	UpdateScore(ctx context.Context, participantID uuid.UUID, score, solved int) error
	UpdateRanks(ctx context.Context, contestID uuid.UUID, ranks map[uuid.UUID]int) error
	Withdraw(ctx context.Context, participantID uuid.UUID) error
}

// RankedParticipant is one leaderboard row
type RankedParticipant struct {
	Rank           int       `json:"rank"`
	ParticipantID  uuid.UUID `json:"participant_id"`
	Name           string    `json:"name"`
	Score          int       `json:"score"`
	SolvedProblems int       `json:"solved_problems"`
}

// ContestHistoryEntry is one contest in a user's history
type ContestHistoryEntry struct {
	Contest        ContestSummary `json:"contest"`
	ParticipantID  uuid.UUID      `json:"participant_id"`
	Score          int            `json:"score"`
	SolvedProblems int            `json:"solved_problems"`
	Rank           int            `json:"rank"`
	JoinedAt       time.Time      `json:"joined_at"`
	Withdrawn      bool           `json:"withdrawn"`
}
