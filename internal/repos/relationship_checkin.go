package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type RelationshipCheckinRepo interface {
	Create(ctx context.Context, tx *gorm.DB, checkins []*types.RelationshipCheckin) ([]*types.RelationshipCheckin, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RelationshipCheckin, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RelationshipCheckin, error)
	GetByUserAndPartner(ctx context.Context, tx *gorm.DB, userID uuid.UUID, partnerName string) ([]*types.RelationshipCheckin, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type relationshipCheckinRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipCheckinRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipCheckinRepo {
	repoLog := baseLog.With("repo", "RelationshipCheckinRepo")
	return &relationshipCheckinRepo{db: db, log: repoLog}
}

func (r *relationshipCheckinRepo) Create(ctx context.Context, tx *gorm.DB, checkins []*types.RelationshipCheckin) ([]*types.RelationshipCheckin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(checkins) == 0 {
		return []*types.RelationshipCheckin{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&checkins).Error; err != nil {
		return nil, err
	}
	return checkins, nil
}

func (r *relationshipCheckinRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RelationshipCheckin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RelationshipCheckin
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

func (r *relationshipCheckinRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.RelationshipCheckin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RelationshipCheckin
	if userID == uuid.Nil {
		return results, nil
	}
	if limit <= 0 {
		limit = 100
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("checkin_date DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *relationshipCheckinRepo) GetByUserAndPartner(ctx context.Context, tx *gorm.DB, userID uuid.UUID, partnerName string) ([]*types.RelationshipCheckin, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RelationshipCheckin
	if userID == uuid.Nil || partnerName == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND partner_name = ?", userID, partnerName).
		Order("checkin_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *relationshipCheckinRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.RelationshipCheckin{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *relationshipCheckinRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.RelationshipCheckin{}).Error; err != nil {
		return err
	}
	return nil
}
