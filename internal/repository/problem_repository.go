package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prephub/contests/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// FindByID finds a problem by its ID
func (r *problemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&problem)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrProblemNotFound)
	}
	return &problem, nil
}

// FindWithTestCases loads a problem with its hidden test cases in order
func (r *problemRepository) FindWithTestCases(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_cases.position ASC")
		}).
		Where("id = ?", id).
		First(&problem)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrProblemNotFound)
	}
	return &problem, nil
}

// FindByContestID returns the problems of a contest in order
func (r *problemRepository) FindByContestID(ctx context.Context, contestID uuid.UUID) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("position ASC").
		Find(&problems)
	return problems, result.Error
}
