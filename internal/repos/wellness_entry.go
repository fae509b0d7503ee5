package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type WellnessEntryRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.WellnessEntry, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.WellnessEntry, error)
	GetByUserAndDateRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fromDate, toDate string) ([]*types.WellnessEntry, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.WellnessEntry) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type wellnessEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWellnessEntryRepo(db *gorm.DB, baseLog *logger.Logger) WellnessEntryRepo {
	repoLog := baseLog.With("repo", "WellnessEntryRepo")
	return &wellnessEntryRepo{db: db, log: repoLog}
}

func (r *wellnessEntryRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.WellnessEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.WellnessEntry
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

func (r *wellnessEntryRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.WellnessEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.WellnessEntry
	if userID == uuid.Nil {
		return results, nil
	}
	if limit <= 0 {
		limit = 90
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entry_date DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *wellnessEntryRepo) GetByUserAndDateRange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fromDate, toDate string) ([]*types.WellnessEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.WellnessEntry
	if userID == uuid.Nil || fromDate == "" || toDate == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND entry_date >= ? AND entry_date <= ?", userID, fromDate, toDate).
		Order("entry_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *wellnessEntryRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.WellnessEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	// Upsert by unique user_id + entry_date
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND entry_date = ?", row.UserID, row.EntryDate).
		Assign(map[string]interface{}{
			"mood":        row.Mood,
			"energy":      row.Energy,
			"stress":      row.Stress,
			"sleep_hours": row.SleepHours,
			"gratitude":   row.Gratitude,
			"notes":       row.Notes,
		}).
		FirstOrCreate(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *wellnessEntryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.WellnessEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *wellnessEntryRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.WellnessEntry{}).Error; err != nil {
		return err
	}
	return nil
}
