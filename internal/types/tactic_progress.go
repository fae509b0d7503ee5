package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TacticProgress struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_tactic,unique" json:"user_id"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TacticID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_tactic,unique" json:"tactic_id"`
	Tactic      *Tactic        `gorm:"constraint:OnDelete:CASCADE;foreignKey:TacticID;references:ID" json:"tactic,omitempty"`
	LessonID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Lesson      *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Note        string         `gorm:"column:note" json:"note,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TacticProgress) TableName() string { return "tactic_progress" }
