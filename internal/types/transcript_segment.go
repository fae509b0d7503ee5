package types

import (
	"time"

	"github.com/google/uuid"
)

type TranscriptSegment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"resource_id"`
	Resource   *LessonResource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceID;references:ID" json:"resource,omitempty"`
	Idx        int             `gorm:"column:idx;not null" json:"idx"`
	StartMS    int64           `gorm:"column:start_ms;not null;default:0" json:"start_ms"`
	EndMS      int64           `gorm:"column:end_ms;not null;default:0" json:"end_ms"`
	Page       int             `gorm:"column:page;not null;default:0" json:"page,omitempty"`
	Confidence float64         `gorm:"column:confidence;not null;default:0" json:"confidence,omitempty"`
	Provider   string          `gorm:"column:provider" json:"provider,omitempty"`
	Text       string          `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (TranscriptSegment) TableName() string { return "transcript_segment" }
