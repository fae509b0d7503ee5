package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type PhaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, phases []*types.Phase) ([]*types.Phase, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, phaseIDs []uuid.UUID) ([]*types.Phase, error)
	GetByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) ([]*types.Phase, error)
	GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.Phase, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, phaseID uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, phaseIDs []uuid.UUID) error
}

type phaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPhaseRepo(db *gorm.DB, baseLog *logger.Logger) PhaseRepo {
	repoLog := baseLog.With("repo", "PhaseRepo")
	return &phaseRepo{db: db, log: repoLog}
}

func (r *phaseRepo) Create(ctx context.Context, tx *gorm.DB, phases []*types.Phase) ([]*types.Phase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(phases) == 0 {
		return []*types.Phase{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&phases).Error; err != nil {
		return nil, err
	}
	return phases, nil
}

func (r *phaseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, phaseIDs []uuid.UUID) ([]*types.Phase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Phase
	if len(phaseIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", phaseIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *phaseRepo) GetByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) ([]*types.Phase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Phase
	if programID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("program_id = ?", programID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *phaseRepo) GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.Phase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Phase
	if len(programIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("program_id IN ?", programIDs).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *phaseRepo) UpdateFields(ctx context.Context, tx *gorm.DB, phaseID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if phaseID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	return transaction.WithContext(ctx).
		Model(&types.Phase{}).
		Where("id = ?", phaseID).
		Updates(updates).Error
}

func (r *phaseRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, phaseIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(phaseIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", phaseIDs).
		Delete(&types.Phase{}).Error; err != nil {
		return err
	}
	return nil
}
