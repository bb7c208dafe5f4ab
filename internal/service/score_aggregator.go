package service

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

const laneBuffer = 64

var errAggregatorClosed = errors.New("score aggregator is closed")

type recomputeJob struct {
	ctx           context.Context
	contestID     uuid.UUID
	participantID uuid.UUID
	done          chan error
}

// ScoreAggregator recomputes participant totals from the submission log.
// Jobs for one (contest, participant) always land on the same lane, so they
// run one after another while other participants proceed in parallel.
type ScoreAggregator struct {
	participantRepo domain.ParticipantRepository
	submissionRepo  domain.SubmissionRepository
	lanes           []chan recomputeJob
	maxRetries      uint64
	metrics         *infrastructure.TelemetryMetrics
	tracer          trace.Tracer
	logger          *zap.Logger

	baseCtx   context.Context
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	retries   sync.WaitGroup
	closeOnce sync.Once
}

// NewScoreAggregator starts the lane workers; call Close to stop them
func NewScoreAggregator(
	participantRepo domain.ParticipantRepository,
	submissionRepo domain.SubmissionRepository,
	lanes int,
	maxRetries int,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ScoreAggregator {
	if lanes <= 0 {
		lanes = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &ScoreAggregator{
		participantRepo: participantRepo,
		submissionRepo:  submissionRepo,
		lanes:           make([]chan recomputeJob, lanes),
		maxRetries:      uint64(maxRetries),
		metrics:         metrics,
		tracer:          tracer,
		logger:          logger.Named("score"),
		baseCtx:         ctx,
		cancel:          cancel,
	}

	for i := range a.lanes {
		a.lanes[i] = make(chan recomputeJob, laneBuffer)
		a.workers.Add(1)
		go a.work(a.lanes[i])
	}
	return a
}

func (a *ScoreAggregator) laneFor(contestID, participantID uuid.UUID) chan recomputeJob {
	h := fnv.New32a()
	_, _ = h.Write(contestID[:])
	_, _ = h.Write(participantID[:])
	return a.lanes[h.Sum32()%uint32(len(a.lanes))]
}

func (a *ScoreAggregator) work(lane chan recomputeJob) {
	defer a.workers.Done()
	for {
		select {
		case <-a.baseCtx.Done():
			return
		case job := <-lane:
			job.done <- a.recompute(job.ctx, job.contestID, job.participantID)
		}
	}
}

// Recompute runs a recompute on the participant's lane and waits for it
func (a *ScoreAggregator) Recompute(ctx context.Context, contestID, participantID uuid.UUID) error {
	job := recomputeJob{
		ctx:           ctx,
		contestID:     contestID,
		participantID: participantID,
		done:          make(chan error, 1),
	}

	select {
	case a.laneFor(contestID, participantID) <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.baseCtx.Done():
		return errAggregatorClosed
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.baseCtx.Done():
		return errAggregatorClosed
	}
}

// Trigger schedules a recompute in the background, retrying with exponential
// backoff. Failures only leave the stored score stale.
func (a *ScoreAggregator) Trigger(contestID, participantID uuid.UUID) {
	if a.baseCtx.Err() != nil {
		return
	}
	a.retries.Add(1)
	go func() {
		defer a.retries.Done()

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.maxRetries),
			a.baseCtx,
		)
		err := backoff.Retry(func() error {
			err := a.Recompute(a.baseCtx, contestID, participantID)
			if errors.Is(err, errAggregatorClosed) {
				return backoff.Permanent(err)
			}
			return err
		}, policy)
		if err != nil {
			a.metrics.RecordRecomputeFailure(a.baseCtx)
			a.logger.Error("Score recompute gave up",
				zap.String("contest_id", contestID.String()),
				zap.String("participant_id", participantID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Close stops accepting work, abandons pending retries and waits for the workers
func (a *ScoreAggregator) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		a.retries.Wait()
		a.workers.Wait()
	})
}

func (a *ScoreAggregator) recompute(ctx context.Context, contestID, participantID uuid.UUID) error {
	ctx, span := a.tracer.Start(ctx, "ScoreAggregator.Recompute")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.String("participant.id", participantID.String()),
	)

	submissions, err := a.submissionRepo.FindByParticipant(ctx, participantID)
	if err != nil {
		return err
	}

	score, solved := aggregateScore(contestID, submissions)
	span.SetAttributes(attribute.Int("score", score), attribute.Int("solved", solved))

	return a.participantRepo.UpdateScore(ctx, participantID, score, solved)
}

// aggregateScore sums the best score per problem and counts problems with an
// accepted submission. Both only grow as the log grows.
func aggregateScore(contestID uuid.UUID, submissions []domain.Submission) (score, solved int) {
	best := make(map[uuid.UUID]int)
	accepted := make(map[uuid.UUID]bool)

	for _, s := range submissions {
		if s.ContestID != contestID {
			continue
		}
		if current, ok := best[s.ProblemID]; !ok || s.Score > current {
			best[s.ProblemID] = s.Score
		}
		if s.Status == domain.StatusAccepted {
			accepted[s.ProblemID] = true
		}
	}

	for _, points := range best {
		score += points
	}
	return score, len(accepted)
}
