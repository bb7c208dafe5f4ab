package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prephub/contests/internal/domain"
)

func TestRankParticipantsTieBreaks(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t1.Add(2 * time.Minute)

	p1 := domain.Participant{ID: uuid.New(), DisplayName: "P1", Score: 50, SolvedProblems: 2, JoinedAt: t2}
	p2 := domain.Participant{ID: uuid.New(), DisplayName: "P2", Score: 50, SolvedProblems: 1, JoinedAt: t1}
	p3 := domain.Participant{ID: uuid.New(), DisplayName: "P3", Score: 30, SolvedProblems: 1, JoinedAt: t3}

	ranked := RankParticipants([]domain.Participant{p3, p2, p1})
	require.Len(t, ranked, 3)

	assert.Equal(t, "P1", ranked[0].Name)
	assert.Equal(t, "P2", ranked[1].Name)
	assert.Equal(t, "P3", ranked[2].Name)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRankParticipantsEarlierJoinWins(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	late := domain.Participant{ID: uuid.New(), DisplayName: "late", Score: 10, SolvedProblems: 1, JoinedAt: t1.Add(time.Second)}
	early := domain.Participant{ID: uuid.New(), DisplayName: "early", Score: 10, SolvedProblems: 1, JoinedAt: t1}

	ranked := RankParticipants([]domain.Participant{late, early})
	assert.Equal(t, "early", ranked[0].Name)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestRankParticipantsEmpty(t *testing.T) {
	assert.Empty(t, RankParticipants(nil))
}

func TestLeaderboardExcludesWithdrawn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	require.NoError(t, h.contests.Withdraw(ctx, h.contest.ID, bob.UserID))

	entries, err := h.leaderboards.Rank(ctx, h.contest.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, alice.ID, entries[0].ParticipantID)
}

func TestGetLeaderboardServesCachedSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "alice")
	h.at(time.Minute)

	first, err := h.leaderboards.GetLeaderboard(ctx, h.contest.ID)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)
	assert.Zero(t, first.Entries[0].Score)

	_, err = h.submissions.Evaluate(ctx, h.contest.ID, h.problem.ID, alice.ID, submit("ok"))
	require.NoError(t, err)

	cached, err := h.leaderboards.GetLeaderboard(ctx, h.contest.ID)
	require.NoError(t, err)
	assert.Zero(t, cached.Entries[0].Score, "snapshot is served until the next refresh")

	refreshed, err := h.leaderboards.Refresh(ctx, h.contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, refreshed.Entries[0].Score)
	assert.Equal(t, 1, h.cache.published)
	assert.Equal(t, 1, h.participant(t, alice.ID).Rank)

	after, err := h.leaderboards.GetLeaderboard(ctx, h.contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, after.Entries[0].Score)
}

func TestGetLeaderboardReportsCurrentPhase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice")

	board, err := h.leaderboards.GetLeaderboard(ctx, h.contest.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseUpcoming, board.Phase)

	h.at(2 * time.Hour)
	board, err = h.leaderboards.GetLeaderboard(ctx, h.contest.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseEnded, board.Phase)
}

func TestGetLeaderboardUnknownContest(t *testing.T) {
	h := newHarness(t)
	_, err := h.leaderboards.GetLeaderboard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrContestNotFound)
}

func TestRefreshRebuildsScoresFromLog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	h.at(time.Minute)

	// store submissions directly so only Refresh can account for them
	repo := memSubmissionRepo{h.store}
	require.NoError(t, repo.CreateAttempt(ctx, &domain.Submission{
		ID: uuid.New(), ContestID: h.contest.ID, ProblemID: h.secondProb.ID, ParticipantID: bob.ID,
		Status: domain.StatusAccepted, Score: 200,
	}, DefaultAttemptCap))
	require.NoError(t, repo.CreateAttempt(ctx, &domain.Submission{
		ID: uuid.New(), ContestID: h.contest.ID, ProblemID: h.problem.ID, ParticipantID: alice.ID,
		Status: domain.StatusAccepted, Score: 100,
	}, DefaultAttemptCap))

	board, err := h.leaderboards.Refresh(ctx, h.contest.ID)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, bob.ID, board.Entries[0].ParticipantID)
	assert.Equal(t, 200, board.Entries[0].Score)
	assert.Equal(t, alice.ID, board.Entries[1].ParticipantID)
	assert.Equal(t, 2, h.participant(t, alice.ID).Rank)
}

func TestRefreshActiveSkipsIdleContests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice")

	require.NoError(t, h.leaderboards.RefreshActive(ctx))
	assert.Zero(t, h.cache.published, "upcoming contests are not refreshed")

	h.at(30 * time.Minute)
	require.NoError(t, h.leaderboards.RefreshActive(ctx))
	assert.Equal(t, 1, h.cache.published)

	h.at(time.Hour + 30*time.Second)
	require.NoError(t, h.leaderboards.RefreshActive(ctx))
	assert.Equal(t, 2, h.cache.published, "a contest that just ended gets a final refresh")

	h.at(3 * time.Hour)
	require.NoError(t, h.leaderboards.RefreshActive(ctx))
	assert.Equal(t, 2, h.cache.published)
}

func TestRunRefresherStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.leaderboards.RunRefresher(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
