package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Leaderboard is a ranked snapshot of a contest
type Leaderboard struct {
	ContestID   uuid.UUID           `json:"contest_id"`
	Phase       Phase               `json:"phase"`
	GeneratedAt time.Time           `json:"generated_at"`
	Entries     []RankedParticipant `json:"entries"`
}

// LeaderboardCache stores ranked snapshots between refreshes.
// Get returns nil without error on a miss.
type LeaderboardCache interface {
	Get(ctx context.Context, contestID uuid.UUID) (*Leaderboard, error)
	Set(ctx context.Context, board *Leaderboard, ttl time.Duration) error
	Publish(ctx context.Context, board *Leaderboard) error
}
