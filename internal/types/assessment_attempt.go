package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssessmentAttempt struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	AssessmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`
	EnrollmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	Enrollment   *Enrollment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	AttemptNo    int            `gorm:"column:attempt_no;not null" json:"attempt_no"`
	Answers      datatypes.JSON `gorm:"type:jsonb;column:answers;not null" json:"answers"`
	ScorePct     float64        `gorm:"column:score_pct;not null;default:0" json:"score_pct"`
	Passed       bool           `gorm:"column:passed;not null;default:false" json:"passed"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssessmentAttempt) TableName() string { return "assessment_attempt" }
