package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type ProgramRepo interface {
	Create(ctx context.Context, tx *gorm.DB, programs []*types.Program) ([]*types.Program, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.Program, error)
	GetByOrgIDs(ctx context.Context, tx *gorm.DB, orgIDs []uuid.UUID, publishedOnly bool) ([]*types.Program, error)
	GetByOrgAndSlug(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, slug string) (*types.Program, error)
	GetAllPublished(ctx context.Context, tx *gorm.DB) ([]*types.Program, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, programID uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) error
}

type programRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgramRepo(db *gorm.DB, baseLog *logger.Logger) ProgramRepo {
	repoLog := baseLog.With("repo", "ProgramRepo")
	return &programRepo{db: db, log: repoLog}
}

func (r *programRepo) Create(ctx context.Context, tx *gorm.DB, programs []*types.Program) ([]*types.Program, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(programs) == 0 {
		return []*types.Program{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&programs).Error; err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *programRepo) GetByIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.Program, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Program
	if len(programIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", programIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *programRepo) GetByOrgIDs(ctx context.Context, tx *gorm.DB, orgIDs []uuid.UUID, publishedOnly bool) ([]*types.Program, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Program
	if len(orgIDs) == 0 {
		return results, nil
	}

	q := transaction.WithContext(ctx).Where("organization_id IN ?", orgIDs)
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	if err := q.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *programRepo) GetByOrgAndSlug(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, slug string) (*types.Program, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if orgID == uuid.Nil || slug == "" {
		return nil, nil
	}

	var row types.Program
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND slug = ?", orgID, slug).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *programRepo) GetAllPublished(ctx context.Context, tx *gorm.DB) ([]*types.Program, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Program
	if err := transaction.WithContext(ctx).
		Where("published = ?", true).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *programRepo) UpdateFields(ctx context.Context, tx *gorm.DB, programID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if programID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	return transaction.WithContext(ctx).
		Model(&types.Program{}).
		Where("id = ?", programID).
		Updates(updates).Error
}

func (r *programRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(programIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", programIDs).
		Delete(&types.Program{}).Error; err != nil {
		return err
	}
	return nil
}
