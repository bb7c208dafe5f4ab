package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

var testTracer = otel.Tracer("test")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// memStore backs every fake repository so they observe each other's writes
type memStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]domain.User
	contests     map[uuid.UUID]domain.Contest
	problems     map[uuid.UUID]domain.Problem
	participants map[uuid.UUID]domain.Participant
	submissions  []domain.Submission
	solves       map[[2]uuid.UUID]bool

	// updateScoreErrs makes the next n UpdateScore calls fail
	updateScoreErrs int
	// updateScoreHook runs before UpdateScore takes the store lock
	updateScoreHook func()
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]domain.User),
		contests:     make(map[uuid.UUID]domain.Contest),
		problems:     make(map[uuid.UUID]domain.Problem),
		participants: make(map[uuid.UUID]domain.Participant),
		solves:       make(map[[2]uuid.UUID]bool),
	}
}

func (s *memStore) problemsOf(contestID uuid.UUID) []domain.Problem {
	var out []domain.Problem
	for _, p := range s.problems {
		if p.ContestID == contestID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *memStore) withProblems(c domain.Contest) domain.Contest {
	c.Problems = s.problemsOf(c.ID)
	return c
}

type memContestRepo struct{ s *memStore }

func (r memContestRepo) Create(_ context.Context, contest *domain.Contest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contests {
		if c.Slug == contest.Slug {
			return domain.NewDomainError(domain.ErrInvalidContest, "slug exists")
		}
	}
	stored := *contest
	stored.Problems = nil
	r.s.contests[contest.ID] = stored
	for _, p := range contest.Problems {
		r.s.problems[p.ID] = p
	}
	return nil
}

func (r memContestRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[id]
	if !ok {
		return nil, domain.ErrContestNotFound
	}
	return &c, nil
}

func (r memContestRepo) FindByIDWithProblems(_ context.Context, id uuid.UUID) (*domain.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[id]
	if !ok {
		return nil, domain.ErrContestNotFound
	}
	c = r.s.withProblems(c)
	return &c, nil
}

func (r memContestRepo) sorted(keep func(domain.Contest) bool) []domain.Contest {
	var out []domain.Contest
	for _, c := range r.s.contests {
		if keep(c) {
			out = append(out, r.s.withProblems(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r memContestRepo) FindAll(_ context.Context) ([]domain.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(c domain.Contest) bool { return !c.Cancelled }), nil
}

func (r memContestRepo) FindOverlapping(_ context.Context, from, to time.Time) ([]domain.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(c domain.Contest) bool {
		return !c.Cancelled && !c.StartTime.After(to) && !c.EndTime.Before(from)
	}), nil
}

func (r memContestRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.sorted(func(c domain.Contest) bool { return want[c.ID] }), nil
}

func (r memContestRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contests {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r memContestRepo) Cancel(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[id]
	if !ok {
		return domain.ErrContestNotFound
	}
	c.Cancelled = true
	r.s.contests[id] = c
	return nil
}

type memProblemRepo struct{ s *memStore }

func (r memProblemRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.problems[id]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	p.TestCases = nil
	return &p, nil
}

func (r memProblemRepo) FindWithTestCases(_ context.Context, id uuid.UUID) (*domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.problems[id]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	return &p, nil
}

func (r memProblemRepo) FindByContestID(_ context.Context, contestID uuid.UUID) ([]domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.problemsOf(contestID), nil
}

type memParticipantRepo struct{ s *memStore }

func (r memParticipantRepo) Create(_ context.Context, participant *domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants {
		if p.ContestID == participant.ContestID && p.UserID == participant.UserID {
			return domain.ErrAlreadyRegistered
		}
	}
	r.s.participants[participant.ID] = *participant
	c := r.s.contests[participant.ContestID]
	c.ParticipantCount++
	r.s.contests[participant.ContestID] = c
	return nil
}

func (r memParticipantRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return &p, nil
}

func (r memParticipantRepo) FindByContestAndUser(_ context.Context, contestID, userID uuid.UUID) (*domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants {
		if p.ContestID == contestID && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (r memParticipantRepo) FindByContestID(_ context.Context, contestID uuid.UUID) ([]domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Participant
	for _, p := range r.s.participants {
		if p.ContestID == contestID && !p.Withdrawn {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r memParticipantRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Participant
	for _, p := range r.s.participants {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (r memParticipantRepo) UpdateScore(_ context.Context, participantID uuid.UUID, score, solved int) error {
	if hook := r.s.updateScoreHook; hook != nil {
		hook()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateScoreErrs > 0 {
		r.s.updateScoreErrs--
		return domain.ErrStorageUnavailable
	}

	p, ok := r.s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.Score <= score && p.SolvedProblems <= solved {
		p.Score = score
		p.SolvedProblems = solved
		r.s.participants[participantID] = p
	}
	return nil
}

func (r memParticipantRepo) UpdateRanks(_ context.Context, _ uuid.UUID, ranks map[uuid.UUID]int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, rank := range ranks {
		p := r.s.participants[id]
		p.Rank = rank
		r.s.participants[id] = p
	}
	return nil
}

func (r memParticipantRepo) Withdraw(_ context.Context, participantID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Withdrawn = true
	r.s.participants[participantID] = p
	return nil
}

type memSubmissionRepo struct{ s *memStore }

func (r memSubmissionRepo) countLocked(participantID, problemID uuid.UUID) int {
	n := 0
	for _, sub := range r.s.submissions {
		if sub.ParticipantID == participantID && sub.ProblemID == problemID {
			n++
		}
	}
	return n
}

func (r memSubmissionRepo) CreateAttempt(_ context.Context, submission *domain.Submission, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	used := r.countLocked(submission.ParticipantID, submission.ProblemID)
	if used >= maxAttempts {
		return domain.ErrAttemptLimitExceeded
	}
	submission.AttemptNumber = used + 1
	r.s.submissions = append(r.s.submissions, *submission)

	p := r.s.problems[submission.ProblemID]
	key := [2]uuid.UUID{submission.ParticipantID, submission.ProblemID}
	if submission.Status == domain.StatusAccepted && !r.s.solves[key] {
		r.s.solves[key] = true
		p.SolvedCount++
	}
	p.AttemptedCount++
	r.s.problems[submission.ProblemID] = p
	return nil
}

func (r memSubmissionRepo) CountAttempts(_ context.Context, participantID, problemID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.countLocked(participantID, problemID), nil
}

func (r memSubmissionRepo) FindByParticipant(_ context.Context, participantID uuid.UUID) ([]domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Submission
	for _, sub := range r.s.submissions {
		if sub.ParticipantID == participantID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r memSubmissionRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.submissions {
		if sub.ID == id {
			return &sub, nil
		}
	}
	return nil, domain.ErrSubmissionNotFound
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type memLeaderboardCache struct {
	mu        sync.Mutex
	boards    map[uuid.UUID]domain.Leaderboard
	published int
}

func newMemLeaderboardCache() *memLeaderboardCache {
	return &memLeaderboardCache{boards: make(map[uuid.UUID]domain.Leaderboard)}
}

func (c *memLeaderboardCache) Get(_ context.Context, contestID uuid.UUID) (*domain.Leaderboard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.boards[contestID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (c *memLeaderboardCache) Set(_ context.Context, board *domain.Leaderboard, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[board.ContestID] = *board
	return nil
}

func (c *memLeaderboardCache) Publish(_ context.Context, _ *domain.Leaderboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published++
	return nil
}

// fakeJudge answers every test case with the expected output unless run is set
type fakeJudge struct {
	calls atomic.Int32
	run   func(ctx context.Context, req domain.JudgeRequest) ([]domain.TestCaseResult, error)
}

func (j *fakeJudge) Run(ctx context.Context, req domain.JudgeRequest) ([]domain.TestCaseResult, error) {
	j.calls.Add(1)
	if j.run != nil {
		return j.run(ctx, req)
	}
	return echoResults(req), nil
}

func echoResults(req domain.JudgeRequest) []domain.TestCaseResult {
	out := make([]domain.TestCaseResult, len(req.TestCases))
	for i, tc := range req.TestCases {
		out[i] = domain.TestCaseResult{Passed: true, Stdout: tc.ExpectedOutput, TimeMs: 10, MemoryKb: 1024}
	}
	return out
}

func wrongResults(req domain.JudgeRequest) []domain.TestCaseResult {
	out := make([]domain.TestCaseResult, len(req.TestCases))
	for i := range req.TestCases {
		out[i] = domain.TestCaseResult{Stdout: "nope", TimeMs: 10, MemoryKb: 1024}
	}
	return out
}

// judgeByCode accepts code "ok" and fails everything else with a wrong answer
func judgeByCode(_ context.Context, req domain.JudgeRequest) ([]domain.TestCaseResult, error) {
	if req.Code == "ok" {
		return echoResults(req), nil
	}
	return wrongResults(req), nil
}

// harness wires the services over a shared in-memory store
type harness struct {
	store        *memStore
	clock        *fakeClock
	judge        *fakeJudge
	cache        *memLeaderboardCache
	aggregator   *ScoreAggregator
	contests     *ContestService
	submissions  *SubmissionService
	leaderboards *LeaderboardService

	contest     *domain.Contest
	problem     domain.Problem
	secondProb  domain.Problem
	contestTime time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start.Add(-time.Hour))
	judge := &fakeJudge{run: judgeByCode}
	cache := newMemLeaderboardCache()
	logger := zap.NewNop()

	contestRepo := memContestRepo{store}
	problemRepo := memProblemRepo{store}
	participantRepo := memParticipantRepo{store}
	submissionRepo := memSubmissionRepo{store}
	userRepo := memUserRepo{store}

	aggregator := NewScoreAggregator(participantRepo, submissionRepo, 4, 2, nil, testTracer, logger)
	t.Cleanup(aggregator.Close)

	ledger := NewAttemptLedger(submissionRepo, clock, DefaultAttemptCap)
	h := &harness{
		store:       store,
		clock:       clock,
		judge:       judge,
		cache:       cache,
		aggregator:  aggregator,
		contestTime: start,
		contests:    NewContestService(contestRepo, participantRepo, userRepo, clock, DefaultAttemptCap, testTracer, logger),
		submissions: NewSubmissionService(contestRepo, problemRepo, participantRepo, submissionRepo,
			ledger, judge, aggregator, clock, time.Second, nil, testTracer, logger),
		leaderboards: NewLeaderboardService(contestRepo, participantRepo, aggregator, cache, clock,
			&infrastructure.ContestConfig{LeaderboardRefreshInterval: time.Minute, RefreshConcurrency: 4},
			nil, testTracer, logger),
	}

	organizer := h.addUser(t, "organizer@example.com", "organizer")
	contest, err := h.contests.CreateContest(context.Background(), organizer.ID, &domain.CreateContestRequest{
		Title:     "Spring Sprint",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Problems: []domain.CreateProblemRequest{
			{
				Title:      "Two Sum",
				Difficulty: domain.DifficultyEasy,
				Points:     100,
				TestCases: []domain.CreateTestCaseRequest{
					{Input: "1 2", ExpectedOutput: "3"},
					{Input: "2 2", ExpectedOutput: "4"},
				},
			},
			{
				Title:      "Three Sum",
				Difficulty: domain.DifficultyMedium,
				Points:     200,
				TestCases:  []domain.CreateTestCaseRequest{{Input: "1 2 3", ExpectedOutput: "6"}},
			},
		},
	})
	require.NoError(t, err)

	h.contest = contest
	h.problem = contest.Problems[0]
	h.secondProb = contest.Problems[1]
	return h
}

func (h *harness) addUser(t *testing.T, email, username string) *domain.User {
	t.Helper()
	user := &domain.User{ID: uuid.New(), Email: email, Username: username}
	require.NoError(t, memUserRepo{h.store}.Create(context.Background(), user))
	return user
}

// register adds a user and registers them while the contest is upcoming
func (h *harness) register(t *testing.T, username string) *domain.Participant {
	t.Helper()
	user := h.addUser(t, username+"@example.com", username)
	p, err := h.contests.Register(context.Background(), h.contest.ID, user.ID)
	require.NoError(t, err)
	return p
}

// at moves the clock to contest start plus offset
func (h *harness) at(offset time.Duration) {
	h.clock.Set(h.contestTime.Add(offset))
}

func (h *harness) participant(t *testing.T, id uuid.UUID) domain.Participant {
	t.Helper()
	p, err := memParticipantRepo{h.store}.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *p
}

func (h *harness) storedProblem(t *testing.T, id uuid.UUID) domain.Problem {
	t.Helper()
	p, err := memProblemRepo{h.store}.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *p
}
