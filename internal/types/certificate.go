package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Certificate struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProgramID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	Program      *Program       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	EnrollmentID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"enrollment_id"`
	Enrollment   *Enrollment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	Serial       string         `gorm:"column:serial;not null;uniqueIndex" json:"serial"`
	BucketKey    string         `gorm:"column:bucket_key;not null" json:"bucket_key"`
	URL          string         `gorm:"column:url" json:"url"`
	IssuedAt     time.Time      `gorm:"column:issued_at;not null" json:"issued_at"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Certificate) TableName() string { return "certificate" }
