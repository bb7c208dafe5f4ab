package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/domain"
)

// maxSlugTries bounds the numbered variants tried before falling back to a random suffix
const maxSlugTries = 5

// ContestService handles contest discovery, creation and admission
type ContestService struct {
	contestRepo     domain.ContestRepository
	participantRepo domain.ParticipantRepository
	userRepo        domain.UserRepository
	clock           domain.Clock
	attemptCap      int
	tracer          trace.Tracer
	logger          *zap.Logger
}

// NewContestService creates a new contest service
func NewContestService(
	contestRepo domain.ContestRepository,
	participantRepo domain.ParticipantRepository,
	userRepo domain.UserRepository,
	clock domain.Clock,
	attemptCap int,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ContestService {
	return &ContestService{
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		clock:           clock,
		attemptCap:      attemptCap,
		tracer:          tracer,
		logger:          logger,
	}
}

// CreateContest validates the definition and stores the contest with its problems
func (s *ContestService) CreateContest(ctx context.Context, organizerID uuid.UUID, req *domain.CreateContestRequest) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.CreateContest")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", organizerID.String()),
		attribute.Int("problem.count", len(req.Problems)),
	)

	if err := req.Validate(s.clock.Now()); err != nil {
		return nil, err
	}

	contestSlug, err := s.uniqueSlug(ctx, req.Title)
	if err != nil {
		return nil, err
	}

	contest := &domain.Contest{
		ID:          uuid.New(),
		Slug:        contestSlug,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		OrganizerID: organizerID,
		Problems:    make([]domain.Problem, len(req.Problems)),
	}

	for i, p := range req.Problems {
		problem := domain.Problem{
			ID:            uuid.New(),
			ContestID:     contest.ID,
			Position:      i + 1,
			Title:         strings.TrimSpace(p.Title),
			Statement:     p.Statement,
			Difficulty:    p.Difficulty,
			Points:        p.Points,
			Tags:          p.Tags,
			TimeLimitMs:   p.TimeLimitMs,
			MemoryLimitKb: p.MemoryLimitKb,
			TestCases:     make([]domain.TestCase, len(p.TestCases)),
		}
		if problem.TimeLimitMs == 0 {
			problem.TimeLimitMs = domain.DefaultTimeLimitMs
		}
		if problem.MemoryLimitKb == 0 {
			problem.MemoryLimitKb = domain.DefaultMemoryLimitKb
		}
		for j, tc := range p.TestCases {
			problem.TestCases[j] = domain.TestCase{
				ID:             uuid.New(),
				ProblemID:      problem.ID,
				Position:       j + 1,
				Input:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
			}
		}
		contest.Problems[i] = problem
	}

	if err := s.contestRepo.Create(ctx, contest); err != nil {
		s.logger.Error("Failed to create contest", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Contest created",
		zap.String("contest_id", contest.ID.String()),
		zap.String("slug", contest.Slug),
		zap.String("organizer_id", organizerID.String()),
		zap.Int("problem_count", len(contest.Problems)),
	)

	return contest, nil
}

func (s *ContestService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "contest"
	}

	candidate := base
	for i := 2; i <= maxSlugTries+1; i++ {
		exists, err := s.contestRepo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// ListContests returns non-cancelled contests in the requested phase, earliest start first
func (s *ContestService) ListContests(ctx context.Context, filter domain.PhaseFilter) ([]domain.ContestSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.ListContests")
	defer span.End()

	span.SetAttributes(attribute.String("filter", string(filter)))

	contests, err := s.contestRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	summaries := make([]domain.ContestSummary, 0, len(contests))
	for i := range contests {
		summary := contests[i].ToSummary(now)
		if filter.Matches(summary.Phase) {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}

// GetContest returns a contest with its problems and current phase
func (s *ContestService) GetContest(ctx context.Context, contestID uuid.UUID) (*domain.ContestDetail, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.GetContest")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	contest, err := s.contestRepo.FindByIDWithProblems(ctx, contestID)
	if err != nil {
		return nil, err
	}

	detail := contest.ToDetail(s.clock.Now(), s.attemptCap)
	return &detail, nil
}

// Register admits an authenticated user. When the user is already registered
// the existing participant is returned together with ErrAlreadyRegistered.
func (s *ContestService) Register(ctx context.Context, contestID, userID uuid.UUID) (*domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Register")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("user.id", userID.String()),
	)

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.admit(ctx, contest, user, false)
}

// JoinByEmail admits a user by email while the contest is live.
// No account is created for an unknown email.
func (s *ContestService) JoinByEmail(ctx context.Context, contestID uuid.UUID, email string) (*domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.JoinByEmail")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnknownEmail
		}
		return nil, err
	}

	return s.admit(ctx, contest, user, true)
}

func (s *ContestService) admit(ctx context.Context, contest *domain.Contest, user *domain.User, liveOnly bool) (*domain.Participant, error) {
	existing, err := s.participantRepo.FindByContestAndUser(ctx, contest.ID, user.ID)
	if err == nil {
		return existing, domain.ErrAlreadyRegistered
	}
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		return nil, err
	}

	if contest.Cancelled {
		return nil, domain.ErrContestCancelled
	}

	now := s.clock.Now()
	switch contest.PhaseAt(now) {
	case domain.PhaseEnded:
		return nil, domain.ErrContestEnded
	case domain.PhaseUpcoming:
		if liveOnly {
			return nil, domain.ErrContestNotActive
		}
	}

	participant := &domain.Participant{
		ID:          uuid.New(),
		ContestID:   contest.ID,
		UserID:      user.ID,
		DisplayName: user.Username,
		JoinedAt:    now,
	}

	if err := s.participantRepo.Create(ctx, participant); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			// A concurrent request won the insert
			existing, findErr := s.participantRepo.FindByContestAndUser(ctx, contest.ID, user.ID)
			if findErr != nil {
				return nil, findErr
			}
			return existing, domain.ErrAlreadyRegistered
		}
		s.logger.Error("Failed to register participant", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Participant registered",
		zap.String("contest_id", contest.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("participant_id", participant.ID.String()),
		zap.Bool("live_join", liveOnly),
	)

	return participant, nil
}

// Withdraw flags the user's participation; score history is kept
func (s *ContestService) Withdraw(ctx context.Context, contestID, userID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "ContestService.Withdraw")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("user.id", userID.String()),
	)

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return err
	}

	participant, err := s.participantRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return err
	}
	if participant.Withdrawn {
		return nil
	}

	if contest.PhaseAt(s.clock.Now()) == domain.PhaseEnded {
		return domain.ErrContestEnded
	}

	if err := s.participantRepo.Withdraw(ctx, participant.ID); err != nil {
		return err
	}

	s.logger.Info("Participant withdrew",
		zap.String("contest_id", contestID.String()),
		zap.String("participant_id", participant.ID.String()),
	)
	return nil
}

// CancelContest lets the organizer call off a contest that has not started
func (s *ContestService) CancelContest(ctx context.Context, contestID, organizerID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "ContestService.CancelContest")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("user.id", organizerID.String()),
	)

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return err
	}

	if contest.OrganizerID != organizerID {
		return domain.ErrNotContestOrganizer
	}
	if contest.Cancelled {
		return nil
	}
	if contest.PhaseAt(s.clock.Now()) != domain.PhaseUpcoming {
		return domain.ErrContestStarted
	}

	if err := s.contestRepo.Cancel(ctx, contestID); err != nil {
		return err
	}

	s.logger.Info("Contest cancelled", zap.String("contest_id", contestID.String()))
	return nil
}

// ParticipantForUser resolves the participant row of a user in a contest
func (s *ContestService) ParticipantForUser(ctx context.Context, contestID, userID uuid.UUID) (*domain.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.ParticipantForUser")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("user.id", userID.String()),
	)

	return s.participantRepo.FindByContestAndUser(ctx, contestID, userID)
}

// IsOrganizer reports whether userID organizes the contest
func (s *ContestService) IsOrganizer(ctx context.Context, contestID, userID uuid.UUID) (bool, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return false, err
	}
	return contest.OrganizerID == userID, nil
}

// UserContests returns every contest the user registered for, newest first
func (s *ContestService) UserContests(ctx context.Context, userID uuid.UUID) ([]domain.ContestHistoryEntry, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.UserContests")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	participants, err := s.participantRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(participants))
	for i := range participants {
		ids[i] = participants[i].ContestID
	}

	contests, err := s.contestRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.Contest, len(contests))
	for i := range contests {
		byID[contests[i].ID] = &contests[i]
	}

	now := s.clock.Now()
	history := make([]domain.ContestHistoryEntry, 0, len(participants))
	for _, p := range participants {
		contest, ok := byID[p.ContestID]
		if !ok {
			continue
		}
		history = append(history, domain.ContestHistoryEntry{
			Contest:        contest.ToSummary(now),
			ParticipantID:  p.ID,
			Score:          p.Score,
			SolvedProblems: p.SolvedProblems,
			Rank:           p.Rank,
			JoinedAt:       p.JoinedAt,
			Withdrawn:      p.Withdrawn,
		})
	}
	return history, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
