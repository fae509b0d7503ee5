package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type OrgMembershipRepo interface {
	Create(ctx context.Context, tx *gorm.DB, memberships []*types.OrgMembership) ([]*types.OrgMembership, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.OrgMembership, error)
	GetByOrgAndUser(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) (*types.OrgMembership, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OrgMembership, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.OrgMembership, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type orgMembershipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrgMembershipRepo(db *gorm.DB, baseLog *logger.Logger) OrgMembershipRepo {
	repoLog := baseLog.With("repo", "OrgMembershipRepo")
	return &orgMembershipRepo{db: db, log: repoLog}
}

func (r *orgMembershipRepo) Create(ctx context.Context, tx *gorm.DB, memberships []*types.OrgMembership) ([]*types.OrgMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(memberships) == 0 {
		return []*types.OrgMembership{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *orgMembershipRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.OrgMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.OrgMembership
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

func (r *orgMembershipRepo) GetByOrgAndUser(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) (*types.OrgMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if orgID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}

	var row types.OrgMembership
	err := transaction.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
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

func (r *orgMembershipRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OrgMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.OrgMembership
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *orgMembershipRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.OrgMembership, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.OrgMembership
	if orgID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *orgMembershipRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.OrgMembership{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *orgMembershipRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.OrgMembership{}).Error; err != nil {
		return err
	}
	return nil
}
