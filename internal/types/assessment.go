package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Assessment struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"lesson_id"`
	Lesson      *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	PassPct     float64        `gorm:"column:pass_pct;not null;default:70" json:"pass_pct"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:0" json:"max_attempts"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assessment) TableName() string { return "assessment" }
