package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prephub/contests/internal/domain"
)

// contestRepository implements domain.ContestRepository using GORM
type contestRepository struct {
	db *gorm.DB
}

// NewContestRepository creates a new contest repository
func NewContestRepository(db *gorm.DB) domain.ContestRepository {
	return &contestRepository{db: db}
}

func orderedProblems(db *gorm.DB) *gorm.DB {
	return db.Order("problems.position ASC")
}

// Create inserts the contest, its problems and their test cases in one transaction
func (r *contestRepository) Create(ctx context.Context, contest *domain.Contest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contest).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.NewDomainError(domain.ErrInvalidContest, "a contest with this slug already exists")
			}
			return err
		}
		return nil
	})
}

// FindByID finds a contest by its ID (without problems)
func (r *contestRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&contest)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrContestNotFound)
	}
	return &contest, nil
}

// FindByIDWithProblems finds a contest with its problems in order, test cases excluded
func (r *contestRepository) FindByIDWithProblems(ctx context.Context, id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.db.WithContext(ctx).
		Preload("Problems", orderedProblems).
		Where("id = ?", id).
		First(&contest)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrContestNotFound)
	}
	return &contest, nil
}

// FindAll returns every non-cancelled contest, earliest start first
func (r *contestRepository) FindAll(ctx context.Context) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.db.WithContext(ctx).
		Preload("Problems", orderedProblems).
		Where("cancelled = ?", false).
		Order("start_time ASC").
		Order("id ASC").
		Find(&contests)
	return contests, result.Error
}

// FindOverlapping returns non-cancelled contests whose window intersects [from, to]
func (r *contestRepository) FindOverlapping(ctx context.Context, from, to time.Time) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.db.WithContext(ctx).
		Where("cancelled = ? AND start_time <= ? AND end_time >= ?", false, to, from).
		Order("start_time ASC").
		Find(&contests)
	return contests, result.Error
}

// FindByIDs returns the contests with the given IDs, including cancelled ones
func (r *contestRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contest, error) {
	var contests []domain.Contest
	if len(ids) == 0 {
		return contests, nil
	}
	result := r.db.WithContext(ctx).
		Preload("Problems", orderedProblems).
		Where("id IN ?", ids).
		Order("start_time DESC").
		Find(&contests)
	return contests, result.Error
}

// SlugExists reports whether a contest already uses slug
func (r *contestRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Contest{}).
		Where("slug = ?", slug).
		Count(&count)
	return count > 0, result.Error
}

// Cancel flags the contest as cancelled; rows are never deleted
func (r *contestRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&domain.Contest{}).
		Where("id = ?", id).
		Update("cancelled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}
