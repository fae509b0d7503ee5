package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type AssessmentAttemptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, attempts []*types.AssessmentAttempt) ([]*types.AssessmentAttempt, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssessmentAttempt, error)
	GetByUserAndAssessmentID(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) ([]*types.AssessmentAttempt, error)
	CountByUserAndAssessmentID(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) (int64, error)
	HasPassed(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) (bool, error)
}

type assessmentAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentAttemptRepo {
	repoLog := baseLog.With("repo", "AssessmentAttemptRepo")
	return &assessmentAttemptRepo{db: db, log: repoLog}
}

func (r *assessmentAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempts []*types.AssessmentAttempt) ([]*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(attempts) == 0 {
		return []*types.AssessmentAttempt{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *assessmentAttemptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AssessmentAttempt
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assessmentAttemptRepo) GetByUserAndAssessmentID(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) ([]*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AssessmentAttempt
	if userID == uuid.Nil || assessmentID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("attempt_no ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assessmentAttemptRepo) CountByUserAndAssessmentID(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil || assessmentID == uuid.Nil {
		return 0, nil
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *assessmentAttemptRepo) HasPassed(ctx context.Context, tx *gorm.DB, userID, assessmentID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil || assessmentID == uuid.Nil {
		return false, nil
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("user_id = ? AND assessment_id = ? AND passed = ?", userID, assessmentID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
