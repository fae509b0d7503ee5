package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

type TranscriptSegmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, segments []*types.TranscriptSegment) ([]*types.TranscriptSegment, error)
	GetByResourceID(ctx context.Context, tx *gorm.DB, resourceID uuid.UUID) ([]*types.TranscriptSegment, error)
	FullDeleteByResourceIDs(ctx context.Context, tx *gorm.DB, resourceIDs []uuid.UUID) error
}

type transcriptSegmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptSegmentRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptSegmentRepo {
	repoLog := baseLog.With("repo", "TranscriptSegmentRepo")
	return &transcriptSegmentRepo{db: db, log: repoLog}
}

func (r *transcriptSegmentRepo) Create(ctx context.Context, tx *gorm.DB, segments []*types.TranscriptSegment) ([]*types.TranscriptSegment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(segments) == 0 {
		return []*types.TranscriptSegment{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *transcriptSegmentRepo) GetByResourceID(ctx context.Context, tx *gorm.DB, resourceID uuid.UUID) ([]*types.TranscriptSegment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TranscriptSegment
	if resourceID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("idx ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FullDeleteByResourceIDs clears segments before a re-ingest writes a
// fresh transcript.
func (r *transcriptSegmentRepo) FullDeleteByResourceIDs(ctx context.Context, tx *gorm.DB, resourceIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(resourceIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Unscoped().
		Where("resource_id IN ?", resourceIDs).
		Delete(&types.TranscriptSegment{}).Error; err != nil {
		return err
	}
	return nil
}
