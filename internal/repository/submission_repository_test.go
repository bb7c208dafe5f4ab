package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prephub/contests/internal/domain"
)

// testDSNEnv names a postgres DSN for tests that need a real database,
// e.g. "host=localhost user=postgres password=postgres dbname=contests_test sslmode=disable"
const testDSNEnv = "CONTESTS_TEST_DSN"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Contest{},
		&domain.Problem{},
		&domain.TestCase{},
		&domain.Participant{},
		&domain.Submission{},
		&domain.ProblemSolve{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type attemptFixture struct {
	contest     domain.Contest
	problem     domain.Problem
	participant domain.Participant
}

// seedAttemptFixture stores a live contest with one problem and one participant
func seedAttemptFixture(t *testing.T, db *gorm.DB) *attemptFixture {
	t.Helper()
	now := time.Now().UTC()
	contestID := uuid.New()

	f := &attemptFixture{
		contest: domain.Contest{
			ID:          contestID,
			Slug:        "attempts-" + contestID.String(),
			Title:       "Attempts",
			StartTime:   now.Add(-time.Minute),
			EndTime:     now.Add(time.Hour),
			OrganizerID: uuid.New(),
		},
		problem: domain.Problem{
			ID:            uuid.New(),
			ContestID:     contestID,
			Position:      1,
			Title:         "Two Sum",
			Difficulty:    domain.DifficultyEasy,
			Points:        100,
			TimeLimitMs:   domain.DefaultTimeLimitMs,
			MemoryLimitKb: domain.DefaultMemoryLimitKb,
		},
		participant: domain.Participant{
			ID:          uuid.New(),
			ContestID:   contestID,
			UserID:      uuid.New(),
			DisplayName: "alice",
			JoinedAt:    now,
		},
	}
	require.NoError(t, db.Create(&f.contest).Error)
	require.NoError(t, db.Create(&f.problem).Error)
	require.NoError(t, db.Create(&f.participant).Error)

	t.Cleanup(func() {
		db.Where("problem_id = ?", f.problem.ID).Delete(&domain.ProblemSolve{})
		db.Where("problem_id = ?", f.problem.ID).Delete(&domain.Submission{})
		db.Where("contest_id = ?", contestID).Delete(&domain.Participant{})
		db.Where("contest_id = ?", contestID).Delete(&domain.Problem{})
		db.Where("id = ?", contestID).Delete(&domain.Contest{})
	})
	return f
}

func (f *attemptFixture) submission(status domain.SubmissionStatus) *domain.Submission {
	score := 0
	if status == domain.StatusAccepted {
		score = f.problem.Points
	}
	return &domain.Submission{
		ID:            uuid.New(),
		ContestID:     f.contest.ID,
		ProblemID:     f.problem.ID,
		ParticipantID: f.participant.ID,
		Code:          "print(sum(map(int, input().split())))",
		Language:      domain.LanguagePython,
		Status:        status,
		Score:         score,
		SubmittedAt:   time.Now().UTC(),
	}
}

func reloadProblem(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Problem {
	t.Helper()
	var p domain.Problem
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func TestCreateAttemptConcurrentRespectsCap(t *testing.T) {
	db := openTestDB(t)
	f := seedAttemptFixture(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = repo.CreateAttempt(ctx, f.submission(domain.StatusAccepted), 2)
		}(i)
	}
	close(start)
	wg.Wait()

	var stored, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			stored++
		case errors.Is(err, domain.ErrAttemptLimitExceeded):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, stored)
	assert.Equal(t, 8, rejected)

	count, err := repo.CountAttempts(ctx, f.participant.ID, f.problem.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var numbers []int
	require.NoError(t, db.Model(&domain.Submission{}).
		Where("participant_id = ? AND problem_id = ?", f.participant.ID, f.problem.ID).
		Order("attempt_number").
		Pluck("attempt_number", &numbers).Error)
	assert.Equal(t, []int{1, 2}, numbers)

	problem := reloadProblem(t, db, f.problem.ID)
	assert.Equal(t, 2, problem.AttemptedCount)
	assert.Equal(t, 1, problem.SolvedCount, "two accepted attempts solve the problem once")
}

func TestCreateAttemptSequential(t *testing.T) {
	db := openTestDB(t)
	f := seedAttemptFixture(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	first := f.submission(domain.StatusWrongAnswer)
	require.NoError(t, repo.CreateAttempt(ctx, first, 2))
	assert.Equal(t, 1, first.AttemptNumber)

	problem := reloadProblem(t, db, f.problem.ID)
	assert.Equal(t, 1, problem.AttemptedCount)
	assert.Zero(t, problem.SolvedCount)

	second := f.submission(domain.StatusAccepted)
	require.NoError(t, repo.CreateAttempt(ctx, second, 2))
	assert.Equal(t, 2, second.AttemptNumber)

	err := repo.CreateAttempt(ctx, f.submission(domain.StatusAccepted), 2)
	assert.ErrorIs(t, err, domain.ErrAttemptLimitExceeded)

	problem = reloadProblem(t, db, f.problem.ID)
	assert.Equal(t, 2, problem.AttemptedCount)
	assert.Equal(t, 1, problem.SolvedCount)

	var solve domain.ProblemSolve
	require.NoError(t, db.First(&solve, "participant_id = ? AND problem_id = ?", f.participant.ID, f.problem.ID).Error)
	assert.Equal(t, second.ID, solve.SubmissionID)
}
