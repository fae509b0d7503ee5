package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type TacticRepo interface {
	Create(ctx context.Context, tx *gorm.DB, tactics []*types.Tactic) ([]*types.Tactic, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, tacticIDs []uuid.UUID) ([]*types.Tactic, error)
	GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.Tactic, error)
	GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Tactic, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, tacticID uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, tacticIDs []uuid.UUID) error
}

type tacticRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTacticRepo(db *gorm.DB, baseLog *logger.Logger) TacticRepo {
	repoLog := baseLog.With("repo", "TacticRepo")
	return &tacticRepo{db: db, log: repoLog}
}

func (r *tacticRepo) Create(ctx context.Context, tx *gorm.DB, tactics []*types.Tactic) ([]*types.Tactic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(tactics) == 0 {
		return []*types.Tactic{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&tactics).Error; err != nil {
		return nil, err
	}
	return tactics, nil
}

func (r *tacticRepo) GetByIDs(ctx context.Context, tx *gorm.DB, tacticIDs []uuid.UUID) ([]*types.Tactic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Tactic
	if len(tacticIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", tacticIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *tacticRepo) GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.Tactic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Tactic
	if lessonID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *tacticRepo) GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Tactic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Tactic
	if len(lessonIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("lesson_id IN ?", lessonIDs).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *tacticRepo) UpdateFields(ctx context.Context, tx *gorm.DB, tacticID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if tacticID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	return transaction.WithContext(ctx).
		Model(&types.Tactic{}).
		Where("id = ?", tacticID).
		Updates(updates).Error
}

func (r *tacticRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, tacticIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(tacticIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", tacticIDs).
		Delete(&types.Tactic{}).Error; err != nil {
		return err
	}
	return nil
}
