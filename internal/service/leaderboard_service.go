package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

// RankParticipants orders by score desc, solved problems desc, then earlier
// joined_at. Ranks are 1..n with no shared positions.
func RankParticipants(participants []domain.Participant) []domain.RankedParticipant {
	ordered := make([]domain.Participant, len(participants))
	copy(ordered, participants)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SolvedProblems != b.SolvedProblems {
			return a.SolvedProblems > b.SolvedProblems
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})

	ranked := make([]domain.RankedParticipant, len(ordered))
	for i, p := range ordered {
		ranked[i] = domain.RankedParticipant{
			Rank:           i + 1,
			ParticipantID:  p.ID,
			Name:           p.DisplayName,
			Score:          p.Score,
			SolvedProblems: p.SolvedProblems,
		}
	}
	return ranked
}

// LeaderboardService serves rankings and refreshes them periodically.
// Readers get a snapshot that is at most one refresh interval old.
type LeaderboardService struct {
	contestRepo     domain.ContestRepository
	participantRepo domain.ParticipantRepository
	aggregator      *ScoreAggregator
	cache           domain.LeaderboardCache
	clock           domain.Clock
	interval        time.Duration
	concurrency     int
	group           singleflight.Group
	metrics         *infrastructure.TelemetryMetrics
	tracer          trace.Tracer
	logger          *zap.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	contestRepo domain.ContestRepository,
	participantRepo domain.ParticipantRepository,
	aggregator *ScoreAggregator,
	cache domain.LeaderboardCache,
	clock domain.Clock,
	config *infrastructure.ContestConfig,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *LeaderboardService {
	interval := config.LeaderboardRefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	concurrency := config.RefreshConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LeaderboardService{
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		aggregator:      aggregator,
		cache:           cache,
		clock:           clock,
		interval:        interval,
		concurrency:     concurrency,
		metrics:         metrics,
		tracer:          tracer,
		logger:          logger.Named("leaderboard"),
	}
}

// Rank computes the ranking from the current participant rows, bypassing the cache
func (s *LeaderboardService) Rank(ctx context.Context, contestID uuid.UUID) ([]domain.RankedParticipant, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Rank")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	participants, err := s.participantRepo.FindByContestID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return RankParticipants(participants), nil
}

// GetLeaderboard serves the cached snapshot, building it on a miss.
// Concurrent misses for one contest share a single computation.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, contestID uuid.UUID) (*domain.Leaderboard, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetLeaderboard")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	phase := contest.PhaseAt(s.clock.Now())

	cached, err := s.cache.Get(ctx, contestID)
	if err != nil {
		s.logger.Warn("Leaderboard cache read failed", zap.String("contest_id", contestID.String()), zap.Error(err))
	}
	s.metrics.RecordLeaderboardLookup(ctx, cached != nil)
	span.SetAttributes(attribute.Bool("cache.hit", cached != nil))
	if cached != nil {
		board := *cached
		board.Phase = phase
		return &board, nil
	}

	v, err, _ := s.group.Do(contestID.String(), func() (interface{}, error) {
		entries, err := s.Rank(ctx, contestID)
		if err != nil {
			return nil, err
		}
		board := &domain.Leaderboard{
			ContestID:   contestID,
			GeneratedAt: s.clock.Now(),
			Entries:     entries,
		}
		if err := s.cache.Set(ctx, board, s.interval); err != nil {
			s.logger.Warn("Leaderboard cache write failed", zap.String("contest_id", contestID.String()), zap.Error(err))
		}
		return board, nil
	})
	if err != nil {
		return nil, err
	}

	board := *v.(*domain.Leaderboard)
	board.Phase = phase
	return &board, nil
}

// Refresh recomputes every participant from the submission log, stores the
// ranks and replaces the cached snapshot
func (s *LeaderboardService) Refresh(ctx context.Context, contestID uuid.UUID) (board *domain.Leaderboard, err error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Refresh")
	defer span.End()
	defer func() { s.metrics.RecordLeaderboardRefresh(ctx, err) }()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	participants, err := s.participantRepo.FindByContestID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range participants {
		participantID := p.ID
		g.Go(func() error {
			return s.aggregator.Recompute(gctx, contestID, participantID)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries, err := s.Rank(ctx, contestID)
	if err != nil {
		return nil, err
	}

	ranks := make(map[uuid.UUID]int, len(entries))
	for _, e := range entries {
		ranks[e.ParticipantID] = e.Rank
	}
	if err := s.participantRepo.UpdateRanks(ctx, contestID, ranks); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	board = &domain.Leaderboard{
		ContestID:   contestID,
		Phase:       contest.PhaseAt(now),
		GeneratedAt: now,
		Entries:     entries,
	}
	if err := s.cache.Set(ctx, board, s.interval); err != nil {
		s.logger.Warn("Leaderboard cache write failed", zap.String("contest_id", contestID.String()), zap.Error(err))
	}
	if err := s.cache.Publish(ctx, board); err != nil {
		s.logger.Warn("Leaderboard publish failed", zap.String("contest_id", contestID.String()), zap.Error(err))
	}

	s.logger.Debug("Leaderboard refreshed",
		zap.String("contest_id", contestID.String()),
		zap.Int("participants", len(entries)),
	)
	return board, nil
}

// RefreshActive refreshes contests that are live or ended within the last interval
func (s *LeaderboardService) RefreshActive(ctx context.Context) error {
	now := s.clock.Now()
	contests, err := s.contestRepo.FindOverlapping(ctx, now.Add(-s.interval), now)
	if err != nil {
		return err
	}

	for _, c := range contests {
		if _, err := s.Refresh(ctx, c.ID); err != nil {
			s.logger.Error("Leaderboard refresh failed",
				zap.String("contest_id", c.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RunRefresher refreshes on every interval tick until ctx is cancelled
func (s *LeaderboardService) RunRefresher(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Leaderboard refresher started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Leaderboard refresher stopped")
			return
		case <-ticker.C:
			if err := s.RefreshActive(ctx); err != nil {
				s.logger.Error("Failed to list contests for refresh", zap.Error(err))
			}
		}
	}
}
