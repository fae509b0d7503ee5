package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssessmentQuestion struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`
	Position     int            `gorm:"column:position;not null" json:"position"`
	Prompt       string         `gorm:"column:prompt;not null" json:"prompt"`
	Options      datatypes.JSON `gorm:"type:jsonb;column:options;not null" json:"options"`
	CorrectIndex int            `gorm:"column:correct_index;not null" json:"-"`
	Points       int            `gorm:"column:points;not null;default:1" json:"points"`
	Explanation  string         `gorm:"column:explanation" json:"explanation,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssessmentQuestion) TableName() string { return "assessment_question" }
