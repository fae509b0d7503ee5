package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type TacticProgressRepo interface {
	GetByUserAndTacticIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tacticIDs []uuid.UUID) ([]*types.TacticProgress, error)
	GetByUserAndLessonID(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) ([]*types.TacticProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.TacticProgress) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type tacticProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTacticProgressRepo(db *gorm.DB, baseLog *logger.Logger) TacticProgressRepo {
	repoLog := baseLog.With("repo", "TacticProgressRepo")
	return &tacticProgressRepo{db: db, log: repoLog}
}

func (r *tacticProgressRepo) GetByUserAndTacticIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tacticIDs []uuid.UUID) ([]*types.TacticProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TacticProgress
	if userID == uuid.Nil || len(tacticIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND tactic_id IN ?", userID, tacticIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *tacticProgressRepo) GetByUserAndLessonID(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) ([]*types.TacticProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TacticProgress
	if userID == uuid.Nil || lessonID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *tacticProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.TacticProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	// Upsert by unique user_id + tactic_id
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND tactic_id = ?", row.UserID, row.TacticID).
		Assign(row).
		FirstOrCreate(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *tacticProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	return transaction.WithContext(ctx).
		Model(&types.TacticProgress{}).
		Where("id = ?", id).
		Updates(updates).Error
}
