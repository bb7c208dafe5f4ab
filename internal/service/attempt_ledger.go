package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/prephub/contests/internal/domain"
)

// DefaultAttemptCap is the number of scored submissions allowed per problem
const DefaultAttemptCap = 2

// AttemptLedger counts scored attempts from the submission log and gates new ones.
// The cap is enforced by the repository insert itself, not by the pre-check.
type AttemptLedger struct {
	submissionRepo domain.SubmissionRepository
	clock          domain.Clock
	cap            int
}

// NewAttemptLedger creates a ledger; a non-positive cap falls back to DefaultAttemptCap
func NewAttemptLedger(submissionRepo domain.SubmissionRepository, clock domain.Clock, attemptCap int) *AttemptLedger {
	if attemptCap <= 0 {
		attemptCap = DefaultAttemptCap
	}
	return &AttemptLedger{
		submissionRepo: submissionRepo,
		clock:          clock,
		cap:            attemptCap,
	}
}

// Cap returns the per-problem attempt limit
func (l *AttemptLedger) Cap() int {
	return l.cap
}

// CountAttempts returns the number of recorded submissions for (participant, problem).
// Participants belong to exactly one contest, so the pair is contest-scoped.
func (l *AttemptLedger) CountAttempts(ctx context.Context, participantID, problemID uuid.UUID) (int, error) {
	return l.submissionRepo.CountAttempts(ctx, participantID, problemID)
}

// CanAttempt is true while the contest is ONGOING and attempts remain
func (l *AttemptLedger) CanAttempt(ctx context.Context, contest *domain.Contest, participantID, problemID uuid.UUID) (bool, error) {
	status, err := l.Status(ctx, contest, participantID, problemID)
	if err != nil {
		return false, err
	}
	return status.CanAttempt, nil
}

// Status reports used and remaining attempts
func (l *AttemptLedger) Status(ctx context.Context, contest *domain.Contest, participantID, problemID uuid.UUID) (*domain.AttemptStatus, error) {
	used, err := l.CountAttempts(ctx, participantID, problemID)
	if err != nil {
		return nil, err
	}
	remaining := l.cap - used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.AttemptStatus{
		Used:       used,
		Remaining:  remaining,
		Cap:        l.cap,
		CanAttempt: remaining > 0 && !contest.Cancelled && contest.PhaseAt(l.clock.Now()) == domain.PhaseOngoing,
	}, nil
}

// Record appends the submission if the contest is still ONGOING and the cap allows it.
// The phase is read again here because judging may outlast the contest window.
func (l *AttemptLedger) Record(ctx context.Context, contest *domain.Contest, submission *domain.Submission) error {
	if contest.PhaseAt(l.clock.Now()) != domain.PhaseOngoing {
		return domain.ErrContestNotActive
	}
	return l.submissionRepo.CreateAttempt(ctx, submission, l.cap)
}
