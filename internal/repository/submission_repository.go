package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prephub/contests/internal/domain"
)

// maxAttemptInsertTries bounds retries after losing an attempt-number race
const maxAttemptInsertTries = 5

// submissionRepository implements domain.SubmissionRepository using GORM
type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *gorm.DB) domain.SubmissionRepository {
	return &submissionRepository{db: db}
}

// CreateAttempt inserts the submission as attempt count+1. Two concurrent
// callers that read the same count collide on the unique attempt index;
// the loser re-reads the count and is rejected once the cap is reached.
func (r *submissionRepository) CreateAttempt(ctx context.Context, submission *domain.Submission, maxAttempts int) error {
	for try := 0; try < maxAttemptInsertTries; try++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.insertAttempt(tx, submission, maxAttempts)
		})
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
	}
	return domain.ErrDuplicateAttempt
}

func (r *submissionRepository) insertAttempt(tx *gorm.DB, submission *domain.Submission, maxAttempts int) error {
	var count int64
	err := tx.Model(&domain.Submission{}).
		Where("participant_id = ? AND problem_id = ?", submission.ParticipantID, submission.ProblemID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if int(count) >= maxAttempts {
		return domain.ErrAttemptLimitExceeded
	}

	submission.AttemptNumber = int(count) + 1
	if err := tx.Create(submission).Error; err != nil {
		return err
	}

	firstSolve := false
	if submission.Status == domain.StatusAccepted {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.ProblemSolve{
			ParticipantID: submission.ParticipantID,
			ProblemID:     submission.ProblemID,
			SubmissionID:  submission.ID,
			SolvedAt:      submission.SubmittedAt,
		})
		if result.Error != nil {
			return result.Error
		}
		firstSolve = result.RowsAffected == 1
	}

	// Counter updates go last so the shared problem row is locked briefly
	counters := map[string]interface{}{
		"attempted_count": gorm.Expr("attempted_count + 1"),
	}
	if firstSolve {
		counters["solved_count"] = gorm.Expr("solved_count + 1")
	}
	return tx.Model(&domain.Problem{}).
		Where("id = ?", submission.ProblemID).
		UpdateColumns(counters).Error
}

// CountAttempts counts the recorded submissions of a participant on a problem
func (r *submissionRepository) CountAttempts(ctx context.Context, participantID, problemID uuid.UUID) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Submission{}).
		Where("participant_id = ? AND problem_id = ?", participantID, problemID).
		Count(&count)
	return int(count), result.Error
}

// FindByParticipant returns the submission log of a participant, oldest first
func (r *submissionRepository) FindByParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.Submission, error) {
	var submissions []domain.Submission
	result := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("submitted_at ASC").
		Order("attempt_number ASC").
		Find(&submissions)
	return submissions, result.Error
}

// FindByID finds a submission by its ID
func (r *submissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	var submission domain.Submission
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&submission)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrSubmissionNotFound)
	}
	return &submission, nil
}
