package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

// SubmissionService judges code and records scored attempts
type SubmissionService struct {
	contestRepo     domain.ContestRepository
	problemRepo     domain.ProblemRepository
	participantRepo domain.ParticipantRepository
	submissionRepo  domain.SubmissionRepository
	ledger          *AttemptLedger
	judge           domain.JudgeClient
	aggregator      *ScoreAggregator
	clock           domain.Clock
	judgeTimeout    time.Duration
	metrics         *infrastructure.TelemetryMetrics
	tracer          trace.Tracer
	logger          *zap.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	contestRepo domain.ContestRepository,
	problemRepo domain.ProblemRepository,
	participantRepo domain.ParticipantRepository,
	submissionRepo domain.SubmissionRepository,
	ledger *AttemptLedger,
	judge domain.JudgeClient,
	aggregator *ScoreAggregator,
	clock domain.Clock,
	judgeTimeout time.Duration,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		contestRepo:     contestRepo,
		problemRepo:     problemRepo,
		participantRepo: participantRepo,
		submissionRepo:  submissionRepo,
		ledger:          ledger,
		judge:           judge,
		aggregator:      aggregator,
		clock:           clock,
		judgeTimeout:    judgeTimeout,
		metrics:         metrics,
		tracer:          tracer,
		logger:          logger.Named("submission"),
	}
}

// target is the resolved (contest, problem, participant) triple of a request
type target struct {
	contest     *domain.Contest
	problem     *domain.Problem
	participant *domain.Participant
}

func validateCode(code string, language domain.Language) error {
	if strings.TrimSpace(code) == "" {
		return domain.ErrEmptyCode
	}
	if !language.IsValid() {
		return domain.ErrUnsupportedLanguage
	}
	return nil
}

func (s *SubmissionService) resolve(ctx context.Context, contestID, problemID, participantID uuid.UUID, withTests bool) (*target, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	var problem *domain.Problem
	if withTests {
		problem, err = s.problemRepo.FindWithTestCases(ctx, problemID)
	} else {
		problem, err = s.problemRepo.FindByID(ctx, problemID)
	}
	if err != nil {
		return nil, err
	}
	if problem.ContestID != contestID {
		return nil, domain.ErrProblemNotInContest
	}

	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.ContestID != contestID {
		return nil, domain.ErrParticipantNotFound
	}

	return &target{contest: contest, problem: problem, participant: participant}, nil
}

// Evaluate judges one scored attempt. Nothing is recorded unless the judge
// produced a verdict and the attempt still fits the cap and the contest window.
func (s *SubmissionService) Evaluate(ctx context.Context, contestID, problemID, participantID uuid.UUID, req *domain.SubmitRequest) (*domain.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.Evaluate")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("problem.id", problemID.String()),
		attribute.String("participant.id", participantID.String()),
		attribute.String("submission.language", string(req.Language)),
	)

	if err := validateCode(req.Code, req.Language); err != nil {
		return nil, err
	}

	t, err := s.resolve(ctx, contestID, problemID, participantID, true)
	if err != nil {
		return nil, err
	}

	if t.contest.Cancelled {
		return nil, domain.ErrContestCancelled
	}
	if t.participant.Withdrawn {
		return nil, domain.ErrParticipantWithdrawn
	}
	if t.contest.PhaseAt(s.clock.Now()) != domain.PhaseOngoing {
		return nil, domain.ErrContestNotActive
	}

	used, err := s.ledger.CountAttempts(ctx, participantID, problemID)
	if err != nil {
		return nil, err
	}
	if used >= s.ledger.Cap() {
		s.metrics.RecordAttemptRejection(ctx)
		return nil, domain.ErrAttemptLimitExceeded
	}

	v, err := s.run(ctx, req, t.problem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge failed")
		return nil, err
	}

	submission := &domain.Submission{
		ID:            uuid.New(),
		ContestID:     contestID,
		ProblemID:     problemID,
		ParticipantID: participantID,
		Code:          req.Code,
		Language:      req.Language,
		Status:        v.Status,
		Score:         scoreFor(v.Status, t.problem.Points),
		PassedCount:   v.Passed,
		TotalCount:    v.Total,
		RuntimeMs:     v.RuntimeMs,
		MemoryKb:      v.MemoryKb,
		Verdict:       v.Message,
		SubmittedAt:   s.clock.Now(),
	}

	if err := s.ledger.Record(ctx, t.contest, submission); err != nil {
		if errors.Is(err, domain.ErrAttemptLimitExceeded) {
			s.metrics.RecordAttemptRejection(ctx)
		}
		return nil, err
	}

	s.metrics.RecordSubmission(ctx, string(submission.Status))
	span.SetAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.String("submission.status", string(submission.Status)),
		attribute.Int("submission.attempt", submission.AttemptNumber),
	)

	s.logger.Info("Submission recorded",
		zap.String("submission_id", submission.ID.String()),
		zap.String("participant_id", participantID.String()),
		zap.String("problem_id", problemID.String()),
		zap.String("status", string(submission.Status)),
		zap.Int("attempt", submission.AttemptNumber),
	)

	if err := s.aggregator.Recompute(ctx, contestID, participantID); err != nil {
		s.logger.Warn("Score recompute failed, retrying in background",
			zap.String("participant_id", participantID.String()),
			zap.Error(err),
		)
		s.metrics.RecordRecomputeFailure(ctx)
		s.aggregator.Trigger(contestID, participantID)
	}

	return submission, nil
}

// Submit evaluates an attempt and reports how many attempts remain
func (s *SubmissionService) Submit(ctx context.Context, contestID, problemID, participantID uuid.UUID, req *domain.SubmitRequest) (*domain.SubmissionResult, error) {
	submission, err := s.Evaluate(ctx, contestID, problemID, participantID, req)
	if err != nil {
		return nil, err
	}

	remaining := s.ledger.Cap() - submission.AttemptNumber
	if remaining < 0 {
		remaining = 0
	}
	return &domain.SubmissionResult{
		SubmissionID:      submission.ID,
		Status:            submission.Status,
		Score:             submission.Score,
		AttemptsUsed:      submission.AttemptNumber,
		AttemptsRemaining: remaining,
		PassedCount:       submission.PassedCount,
		TotalCount:        submission.TotalCount,
		RuntimeMs:         submission.RuntimeMs,
		MemoryKb:          submission.MemoryKb,
		Verdict:           submission.Verdict,
	}, nil
}

// Review judges code against an ended contest's problem without recording anything
func (s *SubmissionService) Review(ctx context.Context, contestID, problemID, participantID uuid.UUID, req *domain.SubmitRequest) (*domain.ReviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.Review")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("problem.id", problemID.String()),
	)

	if err := validateCode(req.Code, req.Language); err != nil {
		return nil, err
	}

	t, err := s.resolve(ctx, contestID, problemID, participantID, true)
	if err != nil {
		return nil, err
	}
	if t.contest.PhaseAt(s.clock.Now()) != domain.PhaseEnded {
		return nil, domain.ErrContestNotEnded
	}

	v, err := s.run(ctx, req, t.problem)
	if err != nil {
		return nil, err
	}

	return &domain.ReviewResult{
		Status:      v.Status,
		PassedCount: v.Passed,
		TotalCount:  v.Total,
		RuntimeMs:   v.RuntimeMs,
		MemoryKb:    v.MemoryKb,
		Verdict:     v.Message,
	}, nil
}

// AttemptStatus reports the participant's attempts on a problem
func (s *SubmissionService) AttemptStatus(ctx context.Context, contestID, problemID, participantID uuid.UUID) (*domain.AttemptStatus, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.AttemptStatus")
	defer span.End()

	t, err := s.resolve(ctx, contestID, problemID, participantID, false)
	if err != nil {
		return nil, err
	}

	status, err := s.ledger.Status(ctx, t.contest, participantID, problemID)
	if err != nil {
		return nil, err
	}
	if t.participant.Withdrawn {
		status.CanAttempt = false
	}
	return status, nil
}

// ListSubmissions returns the participant's own submissions in the contest
func (s *SubmissionService) ListSubmissions(ctx context.Context, contestID, participantID uuid.UUID) ([]domain.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.ListSubmissions")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("participant.id", participantID.String()),
	)

	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.ContestID != contestID {
		return nil, domain.ErrParticipantNotFound
	}

	return s.submissionRepo.FindByParticipant(ctx, participantID)
}

// GetSubmission returns one submission if it belongs to the participant
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID, participantID uuid.UUID) (*domain.Submission, error) {
	submission, err := s.submissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.ParticipantID != participantID {
		return nil, domain.ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *SubmissionService) run(ctx context.Context, req *domain.SubmitRequest, problem *domain.Problem) (verdict, error) {
	cases := make([]domain.JudgeTestCase, len(problem.TestCases))
	for i, tc := range problem.TestCases {
		cases[i] = domain.JudgeTestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput}
	}

	// The only deadline on a judge call. Zero disables it.
	judgeCtx := ctx
	if s.judgeTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, s.judgeTimeout)
		defer cancel()
	}

	results, err := s.judge.Run(judgeCtx, domain.JudgeRequest{
		Code:      req.Code,
		Language:  req.Language,
		TestCases: cases,
		Limits:    problem.Limits(),
	})
	if err != nil {
		s.logger.Warn("Judge run failed",
			zap.String("problem_id", problem.ID.String()),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrJudgeUnavailable) {
			return verdict{}, err
		}
		return verdict{}, fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}

	return resolveVerdict(problem.TestCases, results, problem.Limits())
}
