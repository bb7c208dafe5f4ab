package data

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/prephub/contests/internal/domain"
)

//go:embed demo_contests.json
var demoContestsData []byte

// DemoOrganizerEmail owns the seeded contests. Its password hash is not a
// valid bcrypt hash, so nobody can log in as it.
const DemoOrganizerEmail = "demo-organizer@prephub.dev"

// contestJSON is one fixture contest; offsets are relative to seeding time
type contestJSON struct {
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	StartOffsetMinutes int           `json:"start_offset_minutes"`
	DurationMinutes    int           `json:"duration_minutes"`
	Problems           []problemJSON `json:"problems"`
}

type problemJSON struct {
	Title         string         `json:"title"`
	Statement     string         `json:"statement"`
	Difficulty    string         `json:"difficulty"`
	Points        int            `json:"points"`
	Tags          []string       `json:"tags"`
	TimeLimitMs   int            `json:"time_limit_ms"`
	MemoryLimitKb int            `json:"memory_limit_kb"`
	TestCases     []testCaseJSON `json:"test_cases"`
}

type testCaseJSON struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	clock  domain.Clock
	logger *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(db *gorm.DB, clock domain.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     db,
		clock:  clock,
		logger: logger.Named("seeder"),
	}
}

// SeedDemo inserts an ended, a live and an upcoming contest when the
// contests table is empty
func (s *Seeder) SeedDemo(ctx context.Context) error {
	s.logger.Info("Starting to seed demo contests...")

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Contest{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info("Contests already present, skipping demo seed",
			zap.Int64("count", count),
		)
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		organizer := domain.User{
			ID:           uuid.New(),
			Email:        DemoOrganizerEmail,
			Username:     "PrepHub",
			PasswordHash: "!",
		}
		if err := tx.Where(domain.User{Email: DemoOrganizerEmail}).FirstOrCreate(&organizer).Error; err != nil {
			return err
		}

		contests, err := BuildDemoContests(s.clock.Now(), organizer.ID)
		if err != nil {
			return err
		}

		// Problems and test cases are inserted through the associations
		if err := tx.Create(&contests).Error; err != nil {
			return err
		}

		s.logger.Info("Successfully seeded demo contests",
			zap.Int("count", len(contests)),
		)
		return nil
	})
}

// BuildDemoContests materializes the embedded fixture relative to now
func BuildDemoContests(now time.Time, organizerID uuid.UUID) ([]domain.Contest, error) {
	var fixtures []contestJSON
	if err := json.Unmarshal(demoContestsData, &fixtures); err != nil {
		return nil, err
	}

	now = now.UTC().Truncate(time.Minute)
	contests := make([]domain.Contest, len(fixtures))
	for i, f := range fixtures {
		start := now.Add(time.Duration(f.StartOffsetMinutes) * time.Minute)
		contest := domain.Contest{
			ID:          uuid.New(),
			Slug:        slug.Make(f.Title),
			Title:       f.Title,
			Description: f.Description,
			StartTime:   start,
			EndTime:     start.Add(time.Duration(f.DurationMinutes) * time.Minute),
			OrganizerID: organizerID,
			Problems:    make([]domain.Problem, len(f.Problems)),
		}

		for j, p := range f.Problems {
			problem := domain.Problem{
				ID:            uuid.New(),
				ContestID:     contest.ID,
				Position:      j + 1,
				Title:         p.Title,
				Statement:     p.Statement,
				Difficulty:    domain.Difficulty(p.Difficulty),
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
			for k, tc := range p.TestCases {
				problem.TestCases[k] = domain.TestCase{
					ID:             uuid.New(),
					ProblemID:      problem.ID,
					Position:       k + 1,
					Input:          tc.Input,
					ExpectedOutput: tc.ExpectedOutput,
				}
			}
			contest.Problems[j] = problem
		}
		contests[i] = contest
	}

	return contests, nil
}
