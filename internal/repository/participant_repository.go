package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prephub/contests/internal/domain"
)

// participantRepository implements domain.ParticipantRepository using GORM
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) domain.ParticipantRepository {
	return &participantRepository{db: db}
}

// Create inserts the participant and increments the contest participant_count.
// The (contest_id, user_id) unique index decides concurrent duplicates.
func (r *participantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(participant).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyRegistered
			}
			return err
		}
		return tx.Model(&domain.Contest{}).
			Where("id = ?", participant.ContestID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + 1")).Error
	})
}

// FindByID finds a participant by its ID
func (r *participantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	var participant domain.Participant
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&participant)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrParticipantNotFound)
	}
	return &participant, nil
}

// FindByContestAndUser finds the registration of a user in a contest
func (r *participantRepository) FindByContestAndUser(ctx context.Context, contestID, userID uuid.UUID) (*domain.Participant, error) {
	var participant domain.Participant
	result := r.db.WithContext(ctx).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		First(&participant)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrParticipantNotFound)
	}
	return &participant, nil
}

// FindByContestID returns the participants still in the contest, earliest joiners first
func (r *participantRepository) FindByContestID(ctx context.Context, contestID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	result := r.db.WithContext(ctx).
		Where("contest_id = ? AND withdrawn = ?", contestID, false).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&participants)
	return participants, result.Error
}

// FindByUserID returns every registration of a user
func (r *participantRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&participants)
	return participants, result.Error
}

// UpdateScore writes recomputed totals. The guard keeps a stale recompute
// from overwriting a newer, higher result.
func (r *participantRepository) UpdateScore(ctx context.Context, participantID uuid.UUID, score, solved int) error {
	return r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("id = ? AND score <= ? AND solved_problems <= ?", participantID, score, solved).
		Updates(map[string]interface{}{
			"score":           score,
			"solved_problems": solved,
		}).Error
}

// UpdateRanks stores the denormalized rank of every listed participant
func (r *participantRepository) UpdateRanks(ctx context.Context, contestID uuid.UUID, ranks map[uuid.UUID]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for participantID, rank := range ranks {
			err := tx.Model(&domain.Participant{}).
				Where("id = ? AND contest_id = ?", participantID, contestID).
				UpdateColumn("rank", rank).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Withdraw flags the participant as withdrawn; the row and its submissions stay
func (r *participantRepository) Withdraw(ctx context.Context, participantID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("id = ?", participantID).
		Update("withdrawn", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}
